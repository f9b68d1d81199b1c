package model

import (
	"context"
	"time"
)

// AccessTokenCache is the ephemeral registry of the single live access token per user.
// Entries expire on their own after the TTL passed to Save.
type AccessTokenCache interface {
	Save(ctx context.Context, userID string, token string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID string) (bool, error)
}
