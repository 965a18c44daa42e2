// Package platform contains the concrete delivery platform adapters.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenCache stores short-lived platform access tokens per tenant.
type TokenCache interface {
	// Get returns the cached token or "" when absent
	Get(ctx context.Context, code string, tenantID uuid.UUID) (string, error)

	// Set caches a token with a TTL
	Set(ctx context.Context, code string, tenantID uuid.UUID, token string, ttl time.Duration) error

	// Delete drops a cached token, forcing re-authentication
	Delete(ctx context.Context, code string, tenantID uuid.UUID) error
}

// RedisTokenCache implements TokenCache on Redis so tokens are shared across
// server instances and survive restarts within their TTL.
type RedisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache creates a Redis-backed token cache
func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func tokenKey(code string, tenantID uuid.UUID) string {
	return fmt.Sprintf("platform:token:%s:%s", code, tenantID)
}

// Get returns the cached token or "" when absent
func (c *RedisTokenCache) Get(ctx context.Context, code string, tenantID uuid.UUID) (string, error) {
	token, err := c.client.Get(ctx, tokenKey(code, tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Set caches a token with a TTL
func (c *RedisTokenCache) Set(ctx context.Context, code string, tenantID uuid.UUID, token string, ttl time.Duration) error {
	return c.client.Set(ctx, tokenKey(code, tenantID), token, ttl).Err()
}

// Delete drops a cached token
func (c *RedisTokenCache) Delete(ctx context.Context, code string, tenantID uuid.UUID) error {
	return c.client.Del(ctx, tokenKey(code, tenantID)).Err()
}

var _ TokenCache = (*RedisTokenCache)(nil)
