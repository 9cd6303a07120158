package domain

import (
	"fmt"
	"time"
)

// EmbeddingDimensions is the fixed vector dimensionality shared by every
// record in the store. A record with a different length indicates store
// corruption.
const EmbeddingDimensions = 1536

// DocumentEmbedding is one chunk of a document together with its vector.
// Records are created in bulk when a document is indexed and replaced
// wholesale on re-index; the embedding repository is their only writer.
type DocumentEmbedding struct {
	ID              string
	DocumentID      string
	DocumentName    string
	KnowledgeBaseID string
	ChunkIndex      int
	ChunkText       string
	Vector          []float32
	LinesOfService  []string
	Profiles        []string
	CreatedAt       time.Time
	LastUpdate      time.Time
}

// ValidateDocumentEmbedding validates a DocumentEmbedding instance
func ValidateDocumentEmbedding(e *DocumentEmbedding) error {
	if e == nil {
		return fmt.Errorf("document embedding cannot be nil")
	}
	if e.ID == "" {
		return fmt.Errorf("document embedding ID is required")
	}
	if e.DocumentID == "" {
		return fmt.Errorf("document embedding DocumentID is required")
	}
	if e.DocumentName == "" {
		return fmt.Errorf("document embedding DocumentName is required")
	}
	if e.ChunkText == "" {
		return fmt.Errorf("document embedding ChunkText is required")
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("document embedding Vector is required")
	}
	if e.ChunkIndex < 0 {
		return fmt.Errorf("document embedding ChunkIndex cannot be negative")
	}
	return nil
}

// IndexJobStatus represents the status of an index retry job
type IndexJobStatus string

const (
	IndexJobStatusPending    IndexJobStatus = "pending"
	IndexJobStatusProcessing IndexJobStatus = "processing"
	IndexJobStatusCompleted  IndexJobStatus = "completed"
	IndexJobStatusFailed     IndexJobStatus = "failed"
)

// IndexJob records a document whose synchronous indexing failed and is
// awaiting a background retry.
type IndexJob struct {
	ID          string
	DocumentID  string
	Status      IndexJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateIndexJob validates an IndexJob instance
func ValidateIndexJob(j *IndexJob) error {
	if j == nil {
		return fmt.Errorf("index job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("index job ID is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("index job DocumentID is required")
	}
	if !isValidIndexJobStatus(j.Status) {
		return fmt.Errorf("index job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("index job Retries cannot be negative")
	}
	return nil
}

func isValidIndexJobStatus(s IndexJobStatus) bool {
	switch s {
	case IndexJobStatusPending, IndexJobStatusProcessing,
		IndexJobStatusCompleted, IndexJobStatusFailed:
		return true
	}
	return false
}
