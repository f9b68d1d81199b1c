package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/protoa/session-server/internal/model"
)

// KeyPrefix namespaces access token entries in the keyspace.
const KeyPrefix = "access_token:"

var _ model.AccessTokenCache = (*AccessTokenCache)(nil)

// AccessTokenCache keeps the single live access token per user in Redis.
// Every write is a full SET with expiry, so there is no read-modify-write.
type AccessTokenCache struct {
	client goredis.Cmdable
}

// NewClient connects to the Redis server described by url (redis:// or rediss://).
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewAccessTokenCache creates a cache on top of an existing client.
func NewAccessTokenCache(client goredis.Cmdable) *AccessTokenCache {
	return &AccessTokenCache{client: client}
}

func key(userID string) string {
	return KeyPrefix + userID
}

// Save overwrites the user's access token; Redis evicts it after ttl.
func (c *AccessTokenCache) Save(ctx context.Context, userID string, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("non-positive access token ttl %s", ttl)
	}
	if err := c.client.Set(ctx, key(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// Get returns the user's live access token or model.ErrNotFound.
func (c *AccessTokenCache) Get(ctx context.Context, userID string) (string, error) {
	token, err := c.client.Get(ctx, key(userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}

// Delete removes the user's access token. Missing keys are not an error.
func (c *AccessTokenCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

// Exists reports whether the user has a live access token.
func (c *AccessTokenCache) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check access token: %w", err)
	}
	return n > 0, nil
}

// Ping reports whether the Redis server answers.
func (c *AccessTokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
