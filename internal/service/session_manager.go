package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/model"
)

// SessionConfig holds the lifetimes and limits the session protocol runs with.
type SessionConfig struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	StoreTimeout time.Duration
	// RevokeOnReuse ends the subject's live session when a correctly signed
	// but unregistered refresh token is presented.
	RevokeOnReuse bool
}

// SessionManager issues, verifies, rotates and revokes session credentials.
// It composes a Signer with the access token cache and the refresh token
// store, which remain the only sources of truth between calls.
type SessionManager struct {
	signer model.Signer
	cache  model.AccessTokenCache
	store  model.RefreshTokenStore
	cfg    SessionConfig
	logger *logger.Logger
}

func NewSessionManager(
	signer model.Signer,
	cache model.AccessTokenCache,
	store model.RefreshTokenStore,
	cfg SessionConfig,
	logger *logger.Logger,
) *SessionManager {
	return &SessionManager{
		signer: signer,
		cache:  cache,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Login starts a fresh session for subject, replacing any previous one.
func (m *SessionManager) Login(ctx context.Context, subject string) (model.TokenPair, error) {
	if subject == "" {
		return model.TokenPair{}, errors.New("subject is required")
	}

	pair, err := m.issue(ctx, subject)
	if err != nil {
		m.logger.Error("Session manager: login failed",
			"subject", subject,
			"error", err.Error())
		return model.TokenPair{}, err
	}

	m.logger.Info("Session manager: session issued",
		"subject", subject)

	return pair, nil
}

// Authenticate returns the subject of a live access token.
// The token must verify and must also be the exact token registered for its subject.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (string, error) {
	claims, err := m.verify(accessToken, model.TokenKindAccess)
	if err != nil {
		return "", err
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	registered, err := m.cache.Get(storeCtx, claims.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return "", model.Unauthenticated(model.ErrNotRegistered)
	}
	if err != nil {
		return "", model.Unavailable("lookup access token", err)
	}

	if subtle.ConstantTimeCompare([]byte(registered), []byte(accessToken)) != 1 {
		return "", model.Unauthenticated(model.ErrNotRegistered)
	}

	return claims.Subject, nil
}

// Refresh rotates a session: the presented refresh token is removed from the
// store before the replacement pair is issued, so it can never be replayed.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := m.verify(refreshToken, model.TokenKindRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	storeCtx, cancel := m.storeContext(ctx)
	exists, err := m.store.ExistsValid(storeCtx, refreshToken)
	cancel()
	if err != nil {
		return model.TokenPair{}, model.Unavailable("check refresh token", err)
	}
	if !exists {
		m.handleUnregistered(ctx, claims)
		return model.TokenPair{}, model.Unauthenticated(model.ErrNotRegistered)
	}

	storeCtx, cancel = m.storeContext(ctx)
	consumed, err := m.store.Consume(storeCtx, refreshToken)
	cancel()
	if errors.Is(err, model.ErrNotFound) {
		// Another request rotated this token between the check and the claim.
		m.logger.Info("Session manager: concurrent refresh lost the race",
			"subject", claims.Subject)
		return model.TokenPair{}, model.Unauthenticated(model.ErrNotRegistered)
	}
	if err != nil {
		return model.TokenPair{}, model.Unavailable("consume refresh token", err)
	}
	if consumed.UserID != claims.Subject {
		m.logger.Warn("Session manager: refresh token registered to another subject",
			"subject", claims.Subject)
		return model.TokenPair{}, model.Unauthenticated(model.ErrNotRegistered)
	}

	pair, err := m.issue(ctx, claims.Subject)
	if err != nil {
		m.logger.Error("Session manager: refresh failed after rotation",
			"subject", claims.Subject,
			"error", err.Error())
		return model.TokenPair{}, err
	}

	m.logger.Info("Session manager: session refreshed",
		"subject", claims.Subject)

	return pair, nil
}

// Logout removes whatever server-side state the presented tokens identify.
// Empty strings mean the token was not presented. It never fails: problems
// with the tokens or the stores are logged and dropped.
func (m *SessionManager) Logout(ctx context.Context, accessToken string, refreshToken string) {
	if accessToken != "" {
		m.logoutAccess(ctx, accessToken)
	}

	if refreshToken != "" {
		storeCtx, cancel := m.storeContext(ctx)
		defer cancel()
		if err := m.store.DeleteByToken(storeCtx, refreshToken); err != nil {
			m.logger.Warn("Session manager: failed to delete refresh token on logout",
				"error", err.Error())
		}
	}
}

func (m *SessionManager) logoutAccess(ctx context.Context, accessToken string) {
	claims, err := m.signer.Verify(accessToken)
	// An expired token still names its subject once the signature checks out.
	if err != nil && !errors.Is(err, model.ErrExpired) {
		m.logger.Debug("Session manager: ignoring undecodable access token on logout",
			"error", err.Error())
		return
	}
	if claims.Subject == "" || claims.Kind != model.TokenKindAccess {
		return
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.cache.Delete(storeCtx, claims.Subject); err != nil {
		m.logger.Warn("Session manager: failed to delete access token on logout",
			"subject", claims.Subject,
			"error", err.Error())
		return
	}

	m.logger.Info("Session manager: session ended",
		"subject", claims.Subject)
}

// issue mints a pair for subject and registers both halves.
func (m *SessionManager) issue(ctx context.Context, subject string) (model.TokenPair, error) {
	access, err := m.signer.Issue(subject, model.TokenKindAccess, m.cfg.AccessTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, err := m.signer.Issue(subject, model.TokenKindRefresh, m.cfg.RefreshTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	storeCtx, cancel := m.storeContext(ctx)
	err = m.cache.Save(storeCtx, subject, access, m.cfg.AccessTTL)
	cancel()
	if err != nil {
		return model.TokenPair{}, model.Unavailable("persist access", err)
	}

	storeCtx, cancel = m.storeContext(ctx)
	err = m.store.Save(storeCtx, subject, refresh, m.cfg.RefreshTTL)
	cancel()
	if err != nil {
		m.dropAccess(ctx, subject)
		return model.TokenPair{}, model.Unavailable("persist refresh", err)
	}

	return model.TokenPair{
		AccessToken:       access,
		RefreshToken:      refresh,
		AccessTTLSeconds:  int64(m.cfg.AccessTTL / time.Second),
		RefreshTTLSeconds: int64(m.cfg.RefreshTTL / time.Second),
	}, nil
}

// dropAccess unregisters an access token whose refresh half could not be stored.
func (m *SessionManager) dropAccess(ctx context.Context, subject string) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.cache.Delete(storeCtx, subject); err != nil {
		m.logger.Warn("Session manager: failed to roll back access token",
			"subject", subject,
			"error", err.Error())
	}
}

func (m *SessionManager) handleUnregistered(ctx context.Context, claims model.Claims) {
	if !m.cfg.RevokeOnReuse {
		return
	}

	m.logger.Warn("Session manager: refresh token reuse detected, revoking session",
		"subject", claims.Subject,
		"jti", claims.JTI)

	m.dropAccess(ctx, claims.Subject)

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.DeleteByUserID(storeCtx, claims.Subject); err != nil {
		m.logger.Warn("Session manager: failed to revoke refresh token",
			"subject", claims.Subject,
			"error", err.Error())
	}
}

func (m *SessionManager) verify(token string, kind model.TokenKind) (model.Claims, error) {
	if token == "" {
		return model.Claims{}, model.Unauthenticated(model.ErrMalformed)
	}

	claims, err := m.signer.Verify(token)
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			return model.Claims{}, err
		}
		return model.Claims{}, model.Unauthenticated(err)
	}
	if claims.Kind != kind {
		return model.Claims{}, model.Unauthenticated(model.ErrWrongKind)
	}
	return claims, nil
}

func (m *SessionManager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}
