package domain

import (
	"fmt"
	"time"
)

// KnowledgeBase is a named collection of policy documents with a single owner.
type KnowledgeBase struct {
	ID             string
	Name           string
	Description    string
	Author         string // email of the owning user
	TotalDocuments int
	CreatedAt      time.Time
	LastUpdate     time.Time
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}
	if kb.ID == "" {
		return fmt.Errorf("knowledge base ID is required")
	}
	if kb.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}
	if kb.Author == "" {
		return fmt.Errorf("knowledge base Author is required")
	}
	if kb.TotalDocuments < 0 {
		return fmt.Errorf("knowledge base TotalDocuments cannot be negative")
	}
	return nil
}
