package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/telemetry"
)

// RelevantDocument is a document that matched a query, with the chunks that
// matched and the best similarity among them. Chunks keep rank order.
type RelevantDocument struct {
	Document  *domain.Document
	Chunks    []ScoredChunk
	BestScore float64
}

// EmbeddingLister lists candidate embedding records for ranking
type EmbeddingLister interface {
	ListAll(ctx context.Context) ([]domain.DocumentEmbedding, error)
}

// DocumentGetter resolves embedding records back to their parent documents
type DocumentGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// EmbeddingGeneratorInterface defines the interface for embedding generation
type EmbeddingGeneratorInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RetrievalConfig controls ranking behavior.
type RetrievalConfig struct {
	Threshold float64
	TopK      int
}

// DefaultRetrievalConfig returns the default ranking configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Threshold: 0.3,
		TopK:      5,
	}
}

// RetrievalService finds the documents most relevant to a chat query
type RetrievalService struct {
	embeddings EmbeddingLister
	documents  DocumentGetter
	generator  EmbeddingGeneratorInterface
	cfg        RetrievalConfig
	logger     *slog.Logger
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(
	embeddings EmbeddingLister,
	documents DocumentGetter,
	generator EmbeddingGeneratorInterface,
	cfg RetrievalConfig,
	logger *slog.Logger,
) *RetrievalService {
	if cfg.Threshold == 0 && cfg.TopK == 0 {
		cfg = DefaultRetrievalConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		embeddings: embeddings,
		documents:  documents,
		generator:  generator,
		cfg:        cfg,
		logger:     logger,
	}
}

// FindRelevant returns the documents most relevant to query, best match
// first. Retrieval is best-effort: any failure in the pipeline is reported
// to telemetry and collapses to an empty result, so the chat flow degrades
// to answering without document context rather than erroring out.
func (s *RetrievalService) FindRelevant(ctx context.Context, query string) []RelevantDocument {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.FindRelevant", telemetry.SpanAttributes{
		Operation: "retrieval",
	})
	defer span.End()

	docs, err := s.retrieve(ctx, query)
	if err != nil {
		span.SetError(err)
		telemetry.CaptureError(ctx, err)
		s.logger.Warn("retrieval failed, continuing without document context", "error", err)
		return []RelevantDocument{}
	}
	return docs
}

// retrieve runs the full pipeline and surfaces every failure. FindRelevant
// collapses the error; tests and internal callers see the real result.
func (s *RetrievalService) retrieve(ctx context.Context, query string) ([]RelevantDocument, error) {
	queryVec, err := s.generator.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	// Candidates arrive ordered by last_update descending, which the stable
	// sort in Rank turns into a most-recently-updated-first tie-break.
	candidates, err := s.embeddings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	ranked := Rank(queryVec, candidates, s.cfg.Threshold, s.cfg.TopK)
	return s.joinDocuments(ctx, ranked)
}

// joinDocuments groups ranked chunks by parent document, preserving rank
// order across groups. Chunks whose parent document no longer exists are
// skipped; embeddings can briefly outlive a deleted document.
func (s *RetrievalService) joinDocuments(ctx context.Context, ranked []ScoredChunk) ([]RelevantDocument, error) {
	result := make([]RelevantDocument, 0, len(ranked))
	index := make(map[string]int, len(ranked))

	for _, chunk := range ranked {
		docID := chunk.Embedding.DocumentID

		if pos, ok := index[docID]; ok {
			result[pos].Chunks = append(result[pos].Chunks, chunk)
			continue
		}

		doc, err := s.documents.GetByID(ctx, docID)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				s.logger.Warn("skipping chunk with missing parent document", "document_id", docID)
				continue
			}
			return nil, err
		}

		index[docID] = len(result)
		result = append(result, RelevantDocument{
			Document:  doc,
			Chunks:    []ScoredChunk{chunk},
			BestScore: chunk.Score,
		})
	}

	return result, nil
}
