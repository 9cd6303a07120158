package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andino-labs/policychat/internal/api"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	StreamResponse(ctx context.Context, input service.ChatInput, send func(frame string) error) error
	GetSession(ctx context.Context, sessionID, userEmail string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userEmail string) (map[domain.RecencyBucket][]*domain.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID, userEmail string) error
	RateMessage(ctx context.Context, sessionID, messageID, userEmail string, rating domain.MessageRating) error
	DownloadChat(ctx context.Context, sessionID, userEmail string) (string, string, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	SessionID string               `json:"session_id"`
	Messages  []ChatMessageRequest `json:"messages"`
}

type ChatMessageResponse struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Rating      string   `json:"rating,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

type ChatSessionResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Messages   []ChatMessageResponse `json:"messages"`
	CreatedAt  string                `json:"created_at"`
	LastUpdate string                `json:"last_update"`
}

func chatSessionToResponse(s *domain.ChatSession) *ChatSessionResponse {
	messages := make([]ChatMessageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, ChatMessageResponse{
			ID:          m.ID,
			Role:        string(m.Role),
			Content:     m.Content,
			Rating:      string(m.Rating),
			DocumentIDs: m.DocumentIDs,
			CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return &ChatSessionResponse{
		ID:         s.ID,
		Title:      s.Title,
		Messages:   messages,
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LastUpdate: s.LastUpdate.Format("2006-01-02T15:04:05Z"),
	}
}

// Stream answers a chat turn over server-sent events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		api.Error(w, http.StatusBadRequest, "messages are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	messages := make([]domain.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, domain.ChatMessage{
			ID:      m.ID,
			Role:    domain.MessageRole(m.Role),
			Content: m.Content,
		})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(frame string) error {
		if _, err := fmt.Fprint(w, frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	input := service.ChatInput{
		SessionID: req.SessionID,
		UserEmail: userEmail,
		Messages:  messages,
	}

	// headers are already sent, so stream errors can only end the response
	_ = h.svc.StreamResponse(r.Context(), input, send)
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	buckets, err := h.svc.ListSessions(r.Context(), userEmail)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	response := make(map[string][]*ChatSessionResponse, len(buckets))
	for bucket, sessions := range buckets {
		list := make([]*ChatSessionResponse, 0, len(sessions))
		for _, s := range sessions {
			list = append(list, chatSessionToResponse(s))
		}
		response[string(bucket)] = list
	}

	api.Success(w, http.StatusOK, response)
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")

	session, err := h.svc.GetSession(r.Context(), sessionID, userEmail)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatSessionToResponse(session))
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")

	if err := h.svc.DeleteSession(r.Context(), sessionID, userEmail); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type RateMessageRequest struct {
	Rating string `json:"rating"`
}

func (h *ChatHandler) RateMessage(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "messageID")

	var req RateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rating := domain.MessageRating(req.Rating)
	if rating != domain.MessageRatingUp && rating != domain.MessageRatingDown && rating != domain.MessageRatingNone {
		api.Error(w, http.StatusBadRequest, "invalid rating")
		return
	}

	if err := h.svc.RateMessage(r.Context(), sessionID, messageID, userEmail, rating); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "rated"})
}

func (h *ChatHandler) DownloadChat(w http.ResponseWriter, r *http.Request) {
	userEmail := middleware.GetUserEmail(r.Context())
	if userEmail == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")

	content, filename, err := h.svc.DownloadChat(r.Context(), sessionID, userEmail)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, content)
}
