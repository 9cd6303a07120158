// Package tokencache maps session tokens to user emails in Redis.
package tokencache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andino-labs/policychat/internal/domain"
)

const tokenPrefix = "token:"

// Cache is a Redis-backed token store. Tokens expire via Redis TTL; a
// missing key is an invalid or expired token, not an error condition.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a Cache around an injected Redis client
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// SaveToken stores token -> email with the cache TTL
func (c *Cache) SaveToken(ctx context.Context, token, email string) error {
	if token == "" || email == "" {
		return fmt.Errorf("%w: token and email", domain.ErrMissingRequiredField)
	}
	if err := c.client.Set(ctx, tokenPrefix+token, email, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// VerifyToken resolves a token to the user email it was issued for. Accepts
// both bare tokens and "Bearer <token>" header values.
func (c *Cache) VerifyToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return "", domain.ErrInvalidToken
	}

	email, err := c.client.Get(ctx, tokenPrefix+token).Result()
	if err == redis.Nil {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to verify token: %w", err)
	}
	return email, nil
}

// DeleteToken invalidates a token immediately
func (c *Cache) DeleteToken(ctx context.Context, token string) error {
	token = strings.TrimPrefix(token, "Bearer ")
	if err := c.client.Del(ctx, tokenPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
