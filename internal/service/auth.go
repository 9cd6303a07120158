package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/telemetry"
)

const sessionTokenPrefix = "pct_"

// TokenCacheInterface defines the token store used by authentication
type TokenCacheInterface interface {
	SaveToken(ctx context.Context, token, email string) error
	VerifyToken(ctx context.Context, token string) (string, error)
	DeleteToken(ctx context.Context, token string) error
}

// AuthService issues and validates session tokens
type AuthService struct {
	tokens TokenCacheInterface
}

// NewAuthService creates a new AuthService instance
func NewAuthService(tokens TokenCacheInterface) *AuthService {
	return &AuthService{tokens: tokens}
}

// Login issues a session token for a work email and caches the mapping.
// Token lifetime is whatever TTL the cache applies.
func (s *AuthService) Login(ctx context.Context, workEmail string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Login", telemetry.SpanAttributes{
		UserEmail: workEmail,
		Operation: "login",
	})
	defer span.End()

	workEmail = strings.TrimSpace(workEmail)
	if workEmail == "" || !strings.Contains(workEmail, "@") {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "a valid work email is required")
	}

	token, err := generateSessionToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate session token", err)
	}

	if err := s.tokens.SaveToken(ctx, token, workEmail); err != nil {
		return "", err
	}

	return token, nil
}

// ValidateToken resolves a bearer token to the user email it belongs to
func (s *AuthService) ValidateToken(ctx context.Context, token string) (string, error) {
	return s.tokens.VerifyToken(ctx, token)
}

// Logout invalidates a session token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.DeleteToken(ctx, token)
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return sessionTokenPrefix + hex.EncodeToString(bytes), nil
}
