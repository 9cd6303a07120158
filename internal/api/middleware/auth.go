package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/andino-labs/policychat/internal/api"
)

type contextKey string

const UserEmailKey contextKey = "user_email"

type AuthValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// SessionAuth resolves the bearer token to the user's email and stores it
// on the request context.
func SessionAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			userEmail, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), UserEmailKey, userEmail)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserEmail(ctx context.Context) string {
	userEmail, _ := ctx.Value(UserEmailKey).(string)
	return userEmail
}
