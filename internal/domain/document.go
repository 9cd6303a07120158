package domain

import (
	"fmt"
	"time"
)

// IndexStatus tracks whether a document's embeddings are current.
type IndexStatus string

const (
	IndexStatusPending IndexStatus = "pending"
	IndexStatusIndexed IndexStatus = "indexed"
	IndexStatusFailed  IndexStatus = "failed"
)

// Document represents a policy document owned by a knowledge base.
type Document struct {
	ID              string
	Name            string
	Author          string // email of the uploading user
	KnowledgeBaseID string
	URL             string // presigned download URL for the stored file
	StorageKey      string // object key in blob storage
	Content         string // extracted plain text
	Summary         string
	LinesOfService  []string
	Profiles        []string
	SizeBytes       int64
	SizeFormatted   string
	IndexStatus     IndexStatus
	CreatedAt       time.Time
	LastUpdate      time.Time
}

// AccessAttributes returns the categorical tags copied onto embedding records
// at indexing time. They are stored but not applied as a query-time filter.
func (d *Document) AccessAttributes() ([]string, []string) {
	return d.LinesOfService, d.Profiles
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}
	if d.Author == "" {
		return fmt.Errorf("document Author is required")
	}
	if d.KnowledgeBaseID == "" {
		return fmt.Errorf("document KnowledgeBaseID is required")
	}
	if !isValidIndexStatus(d.IndexStatus) {
		return fmt.Errorf("document IndexStatus is invalid: %s", d.IndexStatus)
	}
	return nil
}

func isValidIndexStatus(s IndexStatus) bool {
	switch s {
	case IndexStatusPending, IndexStatusIndexed, IndexStatusFailed:
		return true
	}
	return false
}

// FormatSize renders a byte count the way the document listing displays it.
func FormatSize(byteSize int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case byteSize >= gb:
		return fmt.Sprintf("%.2f GB", float64(byteSize)/float64(gb))
	case byteSize >= mb:
		return fmt.Sprintf("%.2f MB", float64(byteSize)/float64(mb))
	default:
		return fmt.Sprintf("%.2f KB", float64(byteSize)/float64(kb))
	}
}
