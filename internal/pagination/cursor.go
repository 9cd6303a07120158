// Package pagination implements opaque keyset cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor marks the position after the last item of the previous page.
// Keyset pagination orders by (created_at, id) so inserts between requests
// never shift or duplicate pages.
type Cursor struct {
	LastID    string
	CreatedAt time.Time
}

// Page is one page of results plus the cursor for the next one. An empty
// Next means the listing is exhausted.
type Page[T any] struct {
	Items   []T    `json:"items"`
	Next    string `json:"next_cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var ErrInvalidCursor = errors.New("invalid cursor")

// Encode packs the position after item (lastID, createdAt) into an opaque
// base64 token.
func Encode(lastID string, createdAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + createdAt.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode unpacks a cursor token. An empty token decodes to nil, meaning
// "first page".
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: parts[0], CreatedAt: createdAt}, nil
}
