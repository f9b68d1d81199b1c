// Package memory provides an in-process RefreshTokenStore for local
// development and tests. It is not shared between service instances.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/protoa/session-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenStore)(nil)

// RefreshTokenStore keeps rows indexed both by user and by token value.
type RefreshTokenStore struct {
	mu      sync.Mutex
	clock   model.Clock
	byUser  map[string]model.RefreshToken
	byToken map[string]string
}

// NewRefreshTokenStore creates an empty store. A nil clock means time.Now.
func NewRefreshTokenStore(clock model.Clock) *RefreshTokenStore {
	if clock == nil {
		clock = time.Now
	}
	return &RefreshTokenStore{
		clock:   clock,
		byUser:  make(map[string]model.RefreshToken),
		byToken: make(map[string]string),
	}
}

func (s *RefreshTokenStore) Save(_ context.Context, userID string, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeUserLocked(userID)

	now := s.clock()
	s.byUser[userID] = model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	s.byToken[token] = userID
	return nil
}

func (s *RefreshTokenStore) FindByToken(_ context.Context, token string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byToken[token]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return s.liveLocked(userID)
}

func (s *RefreshTokenStore) FindByUserID(_ context.Context, userID string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(userID)
}

func (s *RefreshTokenStore) DeleteByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID, ok := s.byToken[token]; ok {
		s.removeUserLocked(userID)
	}
	return nil
}

func (s *RefreshTokenStore) DeleteByUserID(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeUserLocked(userID)
	return nil
}

func (s *RefreshTokenStore) ExistsValid(ctx context.Context, token string) (bool, error) {
	_, err := s.FindByToken(ctx, token)
	return err == nil, nil
}

func (s *RefreshTokenStore) Consume(_ context.Context, token string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byToken[token]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	rt := s.byUser[userID]
	s.removeUserLocked(userID)

	if rt.Expired(s.clock()) {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (s *RefreshTokenStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for userID, rt := range s.byUser {
		if rt.Expired(now) {
			s.removeUserLocked(userID)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, expired ones included.
func (s *RefreshTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byUser)
}

func (s *RefreshTokenStore) liveLocked(userID string) (model.RefreshToken, error) {
	rt, ok := s.byUser[userID]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	if rt.Expired(s.clock()) {
		s.removeUserLocked(userID)
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (s *RefreshTokenStore) removeUserLocked(userID string) {
	if rt, ok := s.byUser[userID]; ok {
		delete(s.byToken, rt.Token)
		delete(s.byUser, userID)
	}
}
