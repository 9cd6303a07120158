package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/telemetry"
)

// KnowledgeBaseRepositoryInterface defines the repository interface for knowledge base persistence
type KnowledgeBaseRepositoryInterface interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Update(ctx context.Context, kb *domain.KnowledgeBase) error
	Delete(ctx context.Context, id string) error
	AdjustDocumentCount(ctx context.Context, id string, delta int) error
}

// DocumentRemoverInterface deletes a base's documents during a cascade,
// cleaning up embeddings and stored files along the way
type DocumentRemoverInterface interface {
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
	Delete(ctx context.Context, id, userEmail string) error
}

// KnowledgeBaseService handles business logic for knowledge bases
type KnowledgeBaseService struct {
	repo    KnowledgeBaseRepositoryInterface
	docs    DocumentRemoverInterface
	uuidGen UUIDGenerator
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance
func NewKnowledgeBaseService(repo KnowledgeBaseRepositoryInterface, docs DocumentRemoverInterface) *KnowledgeBaseService {
	return NewKnowledgeBaseServiceWithUUIDGen(repo, docs, &DefaultUUIDGenerator{})
}

// NewKnowledgeBaseServiceWithUUIDGen creates a new KnowledgeBaseService with custom UUID generator (for testing)
func NewKnowledgeBaseServiceWithUUIDGen(repo KnowledgeBaseRepositoryInterface, docs DocumentRemoverInterface, uuidGen UUIDGenerator) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		repo:    repo,
		docs:    docs,
		uuidGen: uuidGen,
	}
}

// CreateKnowledgeBaseInput represents the input for creating a knowledge base
type CreateKnowledgeBaseInput struct {
	Name        string
	Description string
	Author      string
}

// Create creates a new, empty knowledge base
func (s *KnowledgeBaseService) Create(ctx context.Context, input CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Create", telemetry.SpanAttributes{
		UserEmail: input.Author,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	kb := &domain.KnowledgeBase{
		ID:          s.uuidGen.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Author:      input.Author,
		CreatedAt:   now,
		LastUpdate:  now,
	}

	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, kb); err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}

	return kb, nil
}

// GetByID fetches a knowledge base
func (s *KnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all knowledge bases
func (s *KnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	return s.repo.List(ctx)
}

// UpdateKnowledgeBaseInput represents the input for updating a knowledge base
type UpdateKnowledgeBaseInput struct {
	ID          string
	UserEmail   string
	Name        string
	Description string
}

// Update changes a knowledge base's name or description
func (s *KnowledgeBaseService) Update(ctx context.Context, input UpdateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Update", telemetry.SpanAttributes{
		KnowledgeBaseID: input.ID,
		UserEmail:       input.UserEmail,
		Operation:       "update",
	})
	defer span.End()

	kb, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if kb.Author != input.UserEmail {
		return nil, domain.ErrNotKnowledgeBaseOwner
	}

	if input.Name != "" {
		kb.Name = input.Name
	}
	if input.Description != "" {
		kb.Description = input.Description
	}
	kb.LastUpdate = time.Now().UTC()

	if err := s.repo.Update(ctx, kb); err != nil {
		return nil, fmt.Errorf("failed to update knowledge base: %w", err)
	}

	return kb, nil
}

// Delete removes a knowledge base and cascades to its documents: each one
// is deleted through the document service so embeddings and stored files
// are cleaned up too. Only the base's author may delete it.
func (s *KnowledgeBaseService) Delete(ctx context.Context, id, userEmail string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Delete", telemetry.SpanAttributes{
		KnowledgeBaseID: id,
		UserEmail:       userEmail,
		Operation:       "delete",
	})
	defer span.End()

	kb, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if kb.Author != userEmail {
		return domain.ErrNotKnowledgeBaseOwner
	}

	docs, err := s.docs.ListByKnowledgeBase(ctx, id)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := s.docs.Delete(ctx, doc.ID, doc.Author); err != nil {
			return fmt.Errorf("failed to delete document %s during cascade: %w", doc.ID, err)
		}
	}

	return s.repo.Delete(ctx, id)
}
