package domain

import (
	"fmt"
	"time"
)

// MessageRole represents the author of a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageRating is user feedback on an assistant message
type MessageRating string

const (
	MessageRatingNone MessageRating = ""
	MessageRatingUp   MessageRating = "up"
	MessageRatingDown MessageRating = "down"
)

// ChatMessage is one turn of a conversation. Assistant messages carry the
// IDs of the documents that were used as context when generating the reply.
type ChatMessage struct {
	ID          string
	Role        MessageRole
	Content     string
	Rating      MessageRating
	DocumentIDs []string
	CreatedAt   time.Time
}

// ChatSession groups the messages of one conversation for one user
type ChatSession struct {
	ID         string
	UserEmail  string
	Title      string
	Messages   []ChatMessage
	CreatedAt  time.Time
	LastUpdate time.Time
}

// ValidateChatSession validates a ChatSession instance
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("chat session cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("chat session ID is required")
	}
	if s.UserEmail == "" {
		return fmt.Errorf("chat session UserEmail is required")
	}
	return nil
}

// ValidateChatMessage validates a ChatMessage instance
func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("chat message cannot be nil")
	}
	if m.ID == "" {
		return fmt.Errorf("chat message ID is required")
	}
	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("chat message Role is invalid: %s", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("chat message Content is required")
	}
	return nil
}

func isValidMessageRole(r MessageRole) bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// RecencyBucket labels how recently a chat session was updated, used to
// group a user's session list in the sidebar.
type RecencyBucket string

const (
	RecencyToday     RecencyBucket = "today"
	RecencyYesterday RecencyBucket = "yesterday"
	RecencyLastWeek  RecencyBucket = "lastWeek"
	RecencyLastMonth RecencyBucket = "lastMonth"
	RecencyOlder     RecencyBucket = "older"
)

// BucketForTime places t into a recency bucket relative to now. Buckets are
// computed on calendar days in now's location, not rolling 24h windows.
func BucketForTime(t, now time.Time) RecencyBucket {
	year, month, day := now.Date()
	startOfToday := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	switch {
	case !t.Before(startOfToday):
		return RecencyToday
	case !t.Before(startOfToday.AddDate(0, 0, -1)):
		return RecencyYesterday
	case !t.Before(startOfToday.AddDate(0, 0, -7)):
		return RecencyLastWeek
	case !t.Before(startOfToday.AddDate(0, -1, 0)):
		return RecencyLastMonth
	default:
		return RecencyOlder
	}
}
