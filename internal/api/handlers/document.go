package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andino-labs/policychat/internal/api"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/pagination"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 32 << 20 // 32 MB held in memory before spilling to disk

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadDocumentInput) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
	ListByAuthor(ctx context.Context, author, cursorToken string, limit int) (*pagination.Page[*domain.Document], error)
	Update(ctx context.Context, input service.UpdateDocumentInput) (*domain.Document, error)
	Delete(ctx context.Context, id, userEmail string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Author          string   `json:"author"`
	KnowledgeBaseID string   `json:"knowledge_base_id"`
	DocumentURL     string   `json:"document_url,omitempty"`
	Summary         string   `json:"summary"`
	LinesOfService  []string `json:"lines_of_service"`
	Profiles        []string `json:"profiles"`
	Size            string   `json:"size"`
	IndexStatus     string   `json:"index_status"`
	CreatedAt       string   `json:"created_at"`
	LastUpdate      string   `json:"last_update"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		Name:            d.Name,
		Author:          d.Author,
		KnowledgeBaseID: d.KnowledgeBaseID,
		DocumentURL:     d.URL,
		Summary:         d.Summary,
		LinesOfService:  d.LinesOfService,
		Profiles:        d.Profiles,
		Size:            d.SizeFormatted,
		IndexStatus:     string(d.IndexStatus),
		CreatedAt:       d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LastUpdate:      d.LastUpdate.Format("2006-01-02T15:04:05Z"),
	}
}

// parseListField accepts either repeated form values or one comma-separated value.
func parseListField(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	knowledgeBaseID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	doc, err := h.svc.Upload(r.Context(), service.UploadDocumentInput{
		Name:            name,
		Author:          userEmail,
		KnowledgeBaseID: knowledgeBaseID,
		Summary:         r.FormValue("summary"),
		LinesOfService:  parseListField(r.Form["lines_of_service"]),
		Profiles:        parseListField(r.Form["profiles"]),
		ContentType:     header.Header.Get("Content-Type"),
		Data:            data,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) ListByKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")

	docs, err := h.svc.ListByKnowledgeBase(r.Context(), knowledgeBaseID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		responses = append(responses, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, responses)
}

// DocumentPageResponse is one page of the caller's documents
type DocumentPageResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Next    string              `json:"next_cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

// List returns the caller's documents across all knowledge bases, one
// cursor page at a time (?cursor=&limit=).
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListByAuthor(r.Context(), userEmail, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := DocumentPageResponse{
		Items:   make([]*DocumentResponse, 0, len(page.Items)),
		Next:    page.Next,
		HasMore: page.HasMore,
	}
	for _, d := range page.Items {
		resp.Items = append(resp.Items, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	input := service.UpdateDocumentInput{
		ID:             id,
		UserEmail:      userEmail,
		Name:           r.FormValue("name"),
		Summary:        r.FormValue("summary"),
		LinesOfService: parseListField(r.Form["lines_of_service"]),
		Profiles:       parseListField(r.Form["profiles"]),
	}

	// file replacement is optional on update
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			api.Error(w, http.StatusBadRequest, "failed to read file")
			return
		}
		input.Data = data
		input.ContentType = header.Header.Get("Content-Type")
	}

	doc, err := h.svc.Update(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id, userEmail); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}
