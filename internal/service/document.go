package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andino-labs/policychat/internal/domain"
	openai "github.com/andino-labs/policychat/internal/openai"
	"github.com/andino-labs/policychat/internal/pagination"
	"github.com/andino-labs/policychat/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
	ListByAuthorPage(ctx context.Context, author string, cursor *pagination.Cursor, limit int) ([]*domain.Document, error)
	Update(ctx context.Context, d *domain.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentStorageInterface defines the blob storage operations documents need
type DocumentStorageInterface interface {
	PutObject(ctx context.Context, key string, contentType string, data []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// TextExtractorInterface extracts plain text from an uploaded file
type TextExtractorInterface interface {
	ExtractText(data []byte) (string, error)
}

// DocumentIndexerInterface defines the indexing operations documents trigger
type DocumentIndexerInterface interface {
	IndexDocument(ctx context.Context, documentID string) error
	RemoveDocument(ctx context.Context, documentID string) error
}

// KnowledgeBaseCounterInterface keeps the per-base document count current
type KnowledgeBaseCounterInterface interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	AdjustDocumentCount(ctx context.Context, id string, delta int) error
}

// SummaryGeneratorInterface produces a short summary of a document's text
// through a one-shot chat completion
type SummaryGeneratorInterface interface {
	ChatCompletion(ctx context.Context, messages []openai.ChatMessage) (string, error)
}

// DocumentService handles business logic for policy documents
type DocumentService struct {
	documentRepo DocumentRepositoryInterface
	kbRepo       KnowledgeBaseCounterInterface
	storage      DocumentStorageInterface
	extractor    TextExtractorInterface
	indexer      DocumentIndexerInterface
	summarizer   SummaryGeneratorInterface
	uuidGen      UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	documentRepo DocumentRepositoryInterface,
	kbRepo KnowledgeBaseCounterInterface,
	storage DocumentStorageInterface,
	extractor TextExtractorInterface,
	indexer DocumentIndexerInterface,
	summarizer SummaryGeneratorInterface,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(documentRepo, kbRepo, storage, extractor, indexer, summarizer, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	documentRepo DocumentRepositoryInterface,
	kbRepo KnowledgeBaseCounterInterface,
	storage DocumentStorageInterface,
	extractor TextExtractorInterface,
	indexer DocumentIndexerInterface,
	summarizer SummaryGeneratorInterface,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		kbRepo:       kbRepo,
		storage:      storage,
		extractor:    extractor,
		indexer:      indexer,
		summarizer:   summarizer,
		uuidGen:      uuidGen,
	}
}

// UploadDocumentInput represents the input for uploading a document
type UploadDocumentInput struct {
	Name            string
	Author          string
	KnowledgeBaseID string
	Summary         string
	LinesOfService  []string
	Profiles        []string
	ContentType     string
	Data            []byte
}

// Upload stores a document file, extracts its text, and indexes it. The
// upload itself succeeds even when indexing fails: the document lands with
// a failed index status and a retry job, so the caller still gets a record.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		UserEmail:       input.Author,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "upload",
	})
	defer span.End()

	kb, err := s.kbRepo.GetByID(ctx, input.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if kb.Author != input.Author {
		return nil, domain.ErrNotDocumentOwner
	}

	text, err := s.extractor.ExtractText(input.Data)
	if err != nil {
		return nil, err
	}

	summary := s.generateSummary(ctx, text, input.Summary)

	docID := s.uuidGen.NewString()
	storageKey := buildDocumentKey(input.KnowledgeBaseID, docID, input.Name)

	if err := s.storage.PutObject(ctx, storageKey, input.ContentType, input.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageOperation, err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:              docID,
		Name:            input.Name,
		Author:          input.Author,
		KnowledgeBaseID: input.KnowledgeBaseID,
		StorageKey:      storageKey,
		Content:         text,
		Summary:         summary,
		LinesOfService:  input.LinesOfService,
		Profiles:        input.Profiles,
		SizeBytes:       int64(len(input.Data)),
		SizeFormatted:   domain.FormatSize(int64(len(input.Data))),
		IndexStatus:     domain.IndexStatusPending,
		CreatedAt:       now,
		LastUpdate:      now,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	if err := s.kbRepo.AdjustDocumentCount(ctx, input.KnowledgeBaseID, 1); err != nil {
		telemetry.CaptureError(ctx, err)
	}

	if err := s.indexer.IndexDocument(ctx, doc.ID); err != nil {
		// The indexer already marked the document failed and queued a retry
		telemetry.CaptureError(ctx, err)
		doc.IndexStatus = domain.IndexStatusFailed
		return doc, nil
	}

	doc.IndexStatus = domain.IndexStatusIndexed
	return doc, nil
}

const (
	// summarySourceMaxChars caps how much document text is sent to the
	// model when generating a summary
	summarySourceMaxChars = 4000

	summarySystemPrompt = `Summarize the following policy document in two or
three sentences. Mention what the policy covers and who it applies to.
Answer with the summary only.`
)

// generateSummary asks the chat model for a document summary. Summary
// generation is best-effort: any model failure falls back to the
// client-supplied summary so an upload never fails on it.
func (s *DocumentService) generateSummary(ctx context.Context, text, fallback string) string {
	if s.summarizer == nil {
		return fallback
	}

	source := text
	if len(source) > summarySourceMaxChars {
		cut := summarySourceMaxChars
		for cut > 0 && !utf8.RuneStart(source[cut]) {
			cut--
		}
		source = source[:cut]
	}

	summary, err := s.summarizer.ChatCompletion(ctx, []openai.ChatMessage{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: source},
	})
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return fallback
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fallback
	}
	return summary
}

// GetByID fetches a document and refreshes its download URL
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.attachDownloadURL(ctx, doc)
	return doc, nil
}

// ListByKnowledgeBase returns the documents of one knowledge base
func (s *DocumentService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListByKnowledgeBase", telemetry.SpanAttributes{
		KnowledgeBaseID: knowledgeBaseID,
		Operation:       "list",
	})
	defer span.End()

	if _, err := s.kbRepo.GetByID(ctx, knowledgeBaseID); err != nil {
		return nil, err
	}

	docs, err := s.documentRepo.ListByKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		s.attachDownloadURL(ctx, doc)
	}
	return docs, nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ListByAuthor returns one page of the caller's documents across all
// knowledge bases, newest first.
func (s *DocumentService) ListByAuthor(ctx context.Context, author, cursorToken string, limit int) (*pagination.Page[*domain.Document], error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListByAuthor", telemetry.SpanAttributes{
		UserEmail: author,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.Decode(cursorToken)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	docs, err := s.documentRepo.ListByAuthorPage(ctx, author, cursor, limit)
	if err != nil {
		return nil, err
	}

	page := &pagination.Page[*domain.Document]{}
	if len(docs) > limit {
		docs = docs[:limit]
		page.HasMore = true
		last := docs[len(docs)-1]
		page.Next = pagination.Encode(last.ID, last.CreatedAt)
	}

	for _, doc := range docs {
		s.attachDownloadURL(ctx, doc)
	}
	page.Items = docs
	return page, nil
}

// UpdateDocumentInput represents the input for updating a document
type UpdateDocumentInput struct {
	ID             string
	UserEmail      string
	Name           string
	Summary        string
	LinesOfService []string
	Profiles       []string
	ContentType    string
	Data           []byte // optional replacement file
}

// Update changes a document's metadata, optionally replacing the file, and
// re-indexes so embedding records pick up the new name and access tags.
func (s *DocumentService) Update(ctx context.Context, input UpdateDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Update", telemetry.SpanAttributes{
		UserEmail:  input.UserEmail,
		DocumentID: input.ID,
		Operation:  "update",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if doc.Author != input.UserEmail {
		return nil, domain.ErrNotDocumentOwner
	}

	if input.Name != "" {
		doc.Name = input.Name
	}
	if input.Summary != "" {
		doc.Summary = input.Summary
	}
	if input.LinesOfService != nil {
		doc.LinesOfService = input.LinesOfService
	}
	if input.Profiles != nil {
		doc.Profiles = input.Profiles
	}

	if len(input.Data) > 0 {
		text, err := s.extractor.ExtractText(input.Data)
		if err != nil {
			return nil, err
		}
		if err := s.storage.PutObject(ctx, doc.StorageKey, input.ContentType, input.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageOperation, err)
		}
		doc.Content = text
		doc.SizeBytes = int64(len(input.Data))
		doc.SizeFormatted = domain.FormatSize(doc.SizeBytes)
	}

	doc.IndexStatus = domain.IndexStatusPending
	doc.LastUpdate = time.Now().UTC()

	if err := s.documentRepo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document record: %w", err)
	}

	if err := s.indexer.IndexDocument(ctx, doc.ID); err != nil {
		telemetry.CaptureError(ctx, err)
		doc.IndexStatus = domain.IndexStatusFailed
		return doc, nil
	}

	doc.IndexStatus = domain.IndexStatusIndexed
	return doc, nil
}

// Delete removes a document, its embeddings, and its stored file
func (s *DocumentService) Delete(ctx context.Context, id, userEmail string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		UserEmail:  userEmail,
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.Author != userEmail {
		return domain.ErrNotDocumentOwner
	}

	if err := s.indexer.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to remove document embeddings: %w", err)
	}

	if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageOperation, err)
	}

	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	if err := s.kbRepo.AdjustDocumentCount(ctx, doc.KnowledgeBaseID, -1); err != nil {
		telemetry.CaptureError(ctx, err)
	}

	return nil
}

func (s *DocumentService) attachDownloadURL(ctx context.Context, doc *domain.Document) {
	if doc.StorageKey == "" {
		return
	}
	url, err := s.storage.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return
	}
	doc.URL = url
}

func buildDocumentKey(knowledgeBaseID, documentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", knowledgeBaseID, documentID, filename)
}
