package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/protoa/session-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

// RefreshTokenRepository is the Postgres RefreshTokenStore holding at most one row per user.
type RefreshTokenRepository struct {
	db    *Connection
	clock model.Clock
}

// NewRefreshTokenRepository creates a repository on db. A nil clock means time.Now.
func NewRefreshTokenRepository(db *Connection, clock model.Clock) *RefreshTokenRepository {
	if clock == nil {
		clock = time.Now
	}
	return &RefreshTokenRepository{db: db, clock: clock}
}

const refreshTokenColumns = `id, user_id, token, expires_at, created_at`

// Save replaces whatever row userID holds with a new one expiring after ttl.
// The delete and insert commit together under a per-user advisory lock, so
// concurrent saves for one user serialize and the last one wins.
func (r *RefreshTokenRepository) Save(ctx context.Context, userID string, token string, ttl time.Duration) error {
	const (
		lockQuery   = `SELECT pg_advisory_xact_lock(hashtext($1))`
		deleteQuery = `DELETE FROM refresh_tokens WHERE user_id = $1`
		insertQuery = `
        INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	)

	now := r.clock().UTC()
	err := WithTx(ctx, r.db.DB, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, lockQuery, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteQuery, userID); err != nil {
			return fmt.Errorf("delete previous: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, uuid.New(), userID, token, now.Add(ttl), now); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// FindByToken returns the live row holding token, or ErrNotFound.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token = $1`
	return r.findLive(ctx, "token", query, token)
}

// FindByUserID returns the live row owned by userID, or ErrNotFound.
func (r *RefreshTokenRepository) FindByUserID(ctx context.Context, userID string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE user_id = $1`
	return r.findLive(ctx, "user id", query, userID)
}

// findLive loads a row and treats it as absent once expired, deleting it on the way.
func (r *RefreshTokenRepository) findLive(ctx context.Context, by string, query string, arg string) (model.RefreshToken, error) {
	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by %s: %w", by, err)
	}

	if rt.Expired(r.clock()) {
		// Best effort; the periodic sweep removes rows this misses.
		_, _ = r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, rt.ID)
		return model.RefreshToken{}, model.ErrNotFound
	}

	return rt, nil
}

// DeleteByToken removes the row holding token. Missing rows are not an error.
func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// DeleteByUserID removes the row owned by userID, if any.
func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete refresh token by user: %w", err)
	}
	return nil
}

// ExistsValid reports whether token is stored and not yet expired.
func (r *RefreshTokenRepository) ExistsValid(ctx context.Context, token string) (bool, error) {
	_, err := r.FindByToken(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Consume deletes the row holding token and returns it. The single DELETE
// statement is what lets only one of several concurrent callers win.
func (r *RefreshTokenRepository) Consume(ctx context.Context, token string) (model.RefreshToken, error) {
	query := `DELETE FROM refresh_tokens WHERE token = $1 RETURNING ` + refreshTokenColumns

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if rt.Expired(r.clock()) {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

// SweepExpired deletes every row that expired before now and returns the count.
func (r *RefreshTokenRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept refresh tokens: %w", err)
	}
	return n, nil
}

func scanRefreshToken(row *sql.Row) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := row.Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.CreatedAt)
	return rt, err
}
