package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore keeps at most one refresh token row per user.
// Rows past their expiry are reported as absent by every read.
type RefreshTokenStore interface {
	Save(ctx context.Context, userID string, token string, ttl time.Duration) error
	FindByToken(ctx context.Context, token string) (RefreshToken, error)
	FindByUserID(ctx context.Context, userID string) (RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
	ExistsValid(ctx context.Context, token string) (bool, error)
	// Consume atomically deletes the row holding token and returns it.
	// Concurrent callers presenting the same token see exactly one success.
	Consume(ctx context.Context, token string) (RefreshToken, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshToken is the durable refresh token row.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the row is no longer usable at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
