package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/andino-labs/policychat/internal/api"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeBaseService interface {
	Create(ctx context.Context, input service.CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Update(ctx context.Context, input service.UpdateKnowledgeBaseInput) (*domain.KnowledgeBase, error)
	Delete(ctx context.Context, id, userEmail string) error
}

type KnowledgeBaseHandler struct {
	svc KnowledgeBaseService
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc}
}

type CreateKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type KnowledgeBaseResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Author         string `json:"author"`
	TotalDocuments int    `json:"total_documents"`
	CreatedAt      string `json:"created_at"`
	LastUpdate     string `json:"last_update"`
}

func knowledgeBaseToResponse(kb *domain.KnowledgeBase) *KnowledgeBaseResponse {
	return &KnowledgeBaseResponse{
		ID:             kb.ID,
		Name:           kb.Name,
		Description:    kb.Description,
		Author:         kb.Author,
		TotalDocuments: kb.TotalDocuments,
		CreatedAt:      kb.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LastUpdate:     kb.LastUpdate.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeBaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	kb, err := h.svc.Create(r.Context(), service.CreateKnowledgeBaseInput{
		Name:        req.Name,
		Description: req.Description,
		Author:      userEmail,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	kb, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	bases, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeBaseResponse, 0, len(bases))
	for _, kb := range bases {
		responses = append(responses, knowledgeBaseToResponse(kb))
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *KnowledgeBaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userEmail := middleware.GetUserEmail(r.Context())

	var req UpdateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kb, err := h.svc.Update(r.Context(), service.UpdateKnowledgeBaseInput{
		ID:          id,
		UserEmail:   userEmail,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userEmail := middleware.GetUserEmail(r.Context())

	if err := h.svc.Delete(r.Context(), id, userEmail); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}
