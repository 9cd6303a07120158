package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/telemetry"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IndexerEmbeddingRepository defines the repository interface for embedding persistence
type IndexerEmbeddingRepository interface {
	ReplaceForDocument(ctx context.Context, documentID string, records []domain.DocumentEmbedding) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// IndexerDocumentRepository defines the repository interface for document status updates
type IndexerDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus) error
}

// IndexJobRepositoryInterface defines the repository interface for index retry jobs
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
}

// IndexerService turns a document's text into embedding records. A failed
// run marks the document failed and enqueues a retry job for the worker.
type IndexerService struct {
	embeddingRepo IndexerEmbeddingRepository
	documentRepo  IndexerDocumentRepository
	jobRepo       IndexJobRepositoryInterface
	generator     EmbeddingGeneratorInterface
	maxChunkChars int
	uuidGen       UUIDGenerator
}

// NewIndexerService creates a new IndexerService instance
func NewIndexerService(
	embeddingRepo IndexerEmbeddingRepository,
	documentRepo IndexerDocumentRepository,
	jobRepo IndexJobRepositoryInterface,
	generator EmbeddingGeneratorInterface,
	maxChunkChars int,
) *IndexerService {
	return NewIndexerServiceWithUUIDGen(
		embeddingRepo, documentRepo, jobRepo, generator, maxChunkChars,
		&DefaultUUIDGenerator{},
	)
}

// NewIndexerServiceWithUUIDGen creates a new IndexerService with custom UUID generator (for testing)
func NewIndexerServiceWithUUIDGen(
	embeddingRepo IndexerEmbeddingRepository,
	documentRepo IndexerDocumentRepository,
	jobRepo IndexJobRepositoryInterface,
	generator EmbeddingGeneratorInterface,
	maxChunkChars int,
	uuidGen UUIDGenerator,
) *IndexerService {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultChunkMaxChars
	}
	return &IndexerService{
		embeddingRepo: embeddingRepo,
		documentRepo:  documentRepo,
		jobRepo:       jobRepo,
		generator:     generator,
		maxChunkChars: maxChunkChars,
		uuidGen:       uuidGen,
	}
}

// WithoutRetryQueue returns a copy of the service that never enqueues retry
// jobs on failure. The retry worker indexes through this copy: the failed job
// it is already holding gets requeued by the worker itself, and a second
// pending job for the same document would reset the retry count.
func (s *IndexerService) WithoutRetryQueue() *IndexerService {
	copied := *s
	copied.jobRepo = nil
	return &copied
}

// IndexDocument chunks and embeds a document, replacing any prior records.
// Unlike retrieval, indexing fails hard: a half-indexed document would serve
// stale or partial context silently, so failures mark the document and queue
// a retry instead of being swallowed.
func (s *IndexerService) IndexDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.IndexDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.index(ctx, doc); err != nil {
		span.SetError(err)
		s.recordFailure(ctx, doc.ID, err)
		return err
	}

	return s.documentRepo.UpdateIndexStatus(ctx, doc.ID, domain.IndexStatusIndexed)
}

func (s *IndexerService) index(ctx context.Context, doc *domain.Document) error {
	chunks := SplitText(doc.Content, s.maxChunkChars)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no indexable text: %w", doc.ID, domain.ErrDocumentNotText)
	}

	lines, profiles := doc.AccessAttributes()
	now := time.Now().UTC()

	records := make([]domain.DocumentEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.generator.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of document %s: %w", i, doc.ID, err)
		}

		records = append(records, domain.DocumentEmbedding{
			ID:              s.uuidGen.NewString(),
			DocumentID:      doc.ID,
			DocumentName:    doc.Name,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			ChunkIndex:      i,
			ChunkText:       chunk,
			Vector:          vector,
			LinesOfService:  lines,
			Profiles:        profiles,
			CreatedAt:       now,
			LastUpdate:      now,
		})
	}

	if err := s.embeddingRepo.ReplaceForDocument(ctx, doc.ID, records); err != nil {
		return fmt.Errorf("failed to store embeddings for document %s: %w", doc.ID, err)
	}
	return nil
}

// recordFailure is best-effort bookkeeping around an indexing error; the
// original error is what the caller sees.
func (s *IndexerService) recordFailure(ctx context.Context, documentID string, cause error) {
	if err := s.documentRepo.UpdateIndexStatus(ctx, documentID, domain.IndexStatusFailed); err != nil {
		telemetry.CaptureError(ctx, err)
	}

	if s.jobRepo == nil {
		return
	}
	job := &domain.IndexJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.IndexJobStatusPending,
		Error:      cause.Error(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		telemetry.CaptureError(ctx, err)
	}
}

// RemoveDocument deletes every embedding record for a document
func (s *IndexerService) RemoveDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.RemoveDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "deindex",
	})
	defer span.End()

	return s.embeddingRepo.DeleteByDocumentID(ctx, documentID)
}
