package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/andino-labs/policychat/internal/api"
)

type AuthService interface {
	Login(ctx context.Context, workEmail string) (string, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type LoginRequest struct {
	WorkEmail string `json:"work_email"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WorkEmail == "" {
		api.Error(w, http.StatusBadRequest, "work_email is required")
		return
	}

	token, err := h.svc.Login(r.Context(), req.WorkEmail)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		api.Error(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	if err := h.svc.Logout(r.Context(), token); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "logged out"})
}
