package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/protoa/session-server/internal/mocks"
	"github.com/protoa/session-server/internal/model"
	"github.com/protoa/session-server/internal/repository/memory"
	rediscache "github.com/protoa/session-server/internal/storage/redis"
	"github.com/protoa/session-server/internal/testutil"
	"github.com/protoa/session-server/internal/token"
)

const testSecret = "session-manager-test-secret-key!"

var defaultConfig = SessionConfig{
	AccessTTL:    900 * time.Second,
	RefreshTTL:   1209600 * time.Second,
	StoreTimeout: time.Second,
}

type harness struct {
	mu      sync.Mutex
	now     time.Time
	cache   *rediscache.AccessTokenCache
	store   *memory.RefreshTokenStore
	manager *SessionManager
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	h.cache = rediscache.NewAccessTokenCache(client)
	h.store = memory.NewRefreshTokenStore(h.clock)
	h.manager = NewSessionManager(token.NewJWT(testSecret, h.clock), h.cache, h.store, cfg, testutil.MakeNoopLogger())
	return h
}

func requireUnauthenticated(t *testing.T, err error, reason error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	assert.NotErrorIs(t, err, model.ErrUnavailable)
	if reason != nil {
		assert.ErrorIs(t, err, reason)
	}
}

func TestSessionManager_Login(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.AccessTTLSeconds)
	assert.Equal(t, int64(1209600), pair.RefreshTTLSeconds)

	cached, err := h.cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, pair.AccessToken, cached)

	row, err := h.store.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, row.Token)
	assert.Equal(t, h.clock().Add(defaultConfig.RefreshTTL), row.ExpiresAt)

	subject, err := h.manager.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)
}

func TestSessionManager_Login_EmptySubject(t *testing.T) {
	h := newHarness(t, defaultConfig)

	_, err := h.manager.Login(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 0, h.store.Len())
}

func TestSessionManager_Login_ReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	first, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	second, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	_, err = h.manager.Authenticate(ctx, first.AccessToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	_, err = h.manager.Refresh(ctx, first.RefreshToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	subject, err := h.manager.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)
	assert.Equal(t, 1, h.store.Len())
}

func TestSessionManager_Login_SubjectsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	a, err := h.manager.Login(ctx, "alice")
	require.NoError(t, err)
	b, err := h.manager.Login(ctx, "bob")
	require.NoError(t, err)

	h.manager.Logout(ctx, a.AccessToken, a.RefreshToken)

	subject, err := h.manager.Authenticate(ctx, b.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", subject)
}

func TestSessionManager_RotationScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	first, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	subject, err := h.manager.Authenticate(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	// Same clock instant as the login.
	second, err := h.manager.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated access token is superseded even though it has not expired.
	_, err = h.manager.Authenticate(ctx, first.AccessToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	subject, err = h.manager.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	// Replaying the consumed refresh token fails and leaves the new session alone.
	_, err = h.manager.Refresh(ctx, first.RefreshToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	subject, err = h.manager.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	third, err := h.manager.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, second.RefreshToken, third.RefreshToken)
	assert.NotEqual(t, second.AccessToken, third.AccessToken)

	_, err = h.manager.Authenticate(ctx, second.AccessToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
}

func TestSessionManager_RevokeOnReuse(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig
	cfg.RevokeOnReuse = true
	h := newHarness(t, cfg)

	first, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	second, err := h.manager.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = h.manager.Refresh(ctx, first.RefreshToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	_, err = h.manager.Authenticate(ctx, second.AccessToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	_, err = h.manager.Refresh(ctx, second.RefreshToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
}

func TestSessionManager_KindIsEnforced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	_, err = h.manager.Authenticate(ctx, pair.RefreshToken)
	requireUnauthenticated(t, err, model.ErrWrongKind)

	_, err = h.manager.Refresh(ctx, pair.AccessToken)
	requireUnauthenticated(t, err, model.ErrWrongKind)

	// Neither mistake disturbs the live session.
	_, err = h.manager.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestSessionManager_Authenticate_Rejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	foreign, err := token.NewJWT("another-secret-entirely-32-bytes", h.clock).Issue("u1", model.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason error
	}{
		{name: "empty", token: "", reason: model.ErrMalformed},
		{name: "garbage", token: "not-a-token", reason: model.ErrMalformed},
		{name: "foreign key", token: foreign, reason: model.ErrInvalidSignature},
		{name: "truncated", token: pair.AccessToken[:len(pair.AccessToken)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.manager.Authenticate(ctx, tt.token)
			requireUnauthenticated(t, err, tt.reason)
		})
	}
}

func TestSessionManager_Authenticate_Expired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	h.advance(defaultConfig.AccessTTL + time.Second)

	_, err = h.manager.Authenticate(ctx, pair.AccessToken)
	requireUnauthenticated(t, err, model.ErrExpired)
}

func TestSessionManager_Refresh_Expired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	h.advance(defaultConfig.RefreshTTL + time.Second)

	_, err = h.manager.Refresh(ctx, pair.RefreshToken)
	requireUnauthenticated(t, err, model.ErrExpired)
}

func TestSessionManager_Logout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	h.manager.Logout(ctx, pair.AccessToken, pair.RefreshToken)

	_, err = h.manager.Authenticate(ctx, pair.AccessToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)

	_, err = h.manager.Refresh(ctx, pair.RefreshToken)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
	assert.Equal(t, 0, h.store.Len())
}

func TestSessionManager_Logout_Partial(t *testing.T) {
	ctx := context.Background()

	t.Run("access only", func(t *testing.T) {
		h := newHarness(t, defaultConfig)
		pair, err := h.manager.Login(ctx, "u1")
		require.NoError(t, err)

		h.manager.Logout(ctx, pair.AccessToken, "")

		_, err = h.manager.Authenticate(ctx, pair.AccessToken)
		requireUnauthenticated(t, err, model.ErrNotRegistered)

		h.advance(time.Second)
		_, err = h.manager.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("refresh only", func(t *testing.T) {
		h := newHarness(t, defaultConfig)
		pair, err := h.manager.Login(ctx, "u1")
		require.NoError(t, err)

		h.manager.Logout(ctx, "", pair.RefreshToken)

		_, err = h.manager.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)

		_, err = h.manager.Refresh(ctx, pair.RefreshToken)
		requireUnauthenticated(t, err, model.ErrNotRegistered)
	})
}

func TestSessionManager_Logout_ExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	h.advance(defaultConfig.AccessTTL + time.Minute)
	h.manager.Logout(ctx, pair.AccessToken, "")

	exists, err := h.cache.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionManager_Logout_IgnoresJunk(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.manager.Logout(ctx, "junk", "junk")
		h.manager.Logout(ctx, "", "")
		// A refresh token in the access slot must not clear the access cache.
		h.manager.Logout(ctx, pair.RefreshToken, "")
	})

	_, err = h.manager.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestSessionManager_Refresh_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultConfig)

	pair, err := h.manager.Login(ctx, "u1")
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := h.manager.Refresh(ctx, pair.RefreshToken); err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), successes.Load())
	for err := range errs {
		requireUnauthenticated(t, err, model.ErrNotRegistered)
	}
	assert.Equal(t, 1, h.store.Len())
}

func newMockedManager(t *testing.T, cfg SessionConfig) (*SessionManager, *mocks.AccessTokenCache, *mocks.RefreshTokenStore, model.Signer) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := token.NewJWT(testSecret, func() time.Time { return now })
	cache := mocks.NewAccessTokenCache(t)
	store := mocks.NewRefreshTokenStore(t)

	return NewSessionManager(signer, cache, store, cfg, testutil.MakeNoopLogger()), cache, store, signer
}

func requireUnavailable(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.NotErrorIs(t, err, model.ErrUnauthenticated)
}

func TestSessionManager_Login_CacheUnavailable(t *testing.T) {
	manager, cache, _, _ := newMockedManager(t, defaultConfig)

	cache.On("Save", mock.Anything, "u1", mock.Anything, defaultConfig.AccessTTL).Return(errors.New("connection refused")).Once()

	_, err := manager.Login(context.Background(), "u1")
	requireUnavailable(t, err)
}

func TestSessionManager_Login_StoreUnavailableRollsBackAccess(t *testing.T) {
	manager, cache, store, _ := newMockedManager(t, defaultConfig)

	cache.On("Save", mock.Anything, "u1", mock.Anything, defaultConfig.AccessTTL).Return(nil).Once()
	store.On("Save", mock.Anything, "u1", mock.Anything, defaultConfig.RefreshTTL).Return(errors.New("pool exhausted")).Once()
	cache.On("Delete", mock.Anything, "u1").Return(nil).Once()

	_, err := manager.Login(context.Background(), "u1")
	requireUnavailable(t, err)
}

func TestSessionManager_Authenticate_CacheUnavailable(t *testing.T) {
	manager, cache, _, signer := newMockedManager(t, defaultConfig)

	access, err := signer.Issue("u1", model.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	cache.On("Get", mock.Anything, "u1").Return("", errors.New("i/o timeout")).Once()

	_, err = manager.Authenticate(context.Background(), access)
	requireUnavailable(t, err)
}

func TestSessionManager_Authenticate_StoreTimeout(t *testing.T) {
	cfg := defaultConfig
	cfg.StoreTimeout = 20 * time.Millisecond
	manager, cache, _, signer := newMockedManager(t, cfg)

	access, err := signer.Issue("u1", model.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	cache.On("Get", mock.Anything, "u1").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded).Once()

	started := time.Now()
	_, err = manager.Authenticate(context.Background(), access)
	requireUnavailable(t, err)
	assert.Less(t, time.Since(started), time.Second)
}

func TestSessionManager_Refresh_StoreUnavailable(t *testing.T) {
	manager, _, store, signer := newMockedManager(t, defaultConfig)

	refresh, err := signer.Issue("u1", model.TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	store.On("ExistsValid", mock.Anything, refresh).Return(false, errors.New("connection reset")).Once()

	_, err = manager.Refresh(context.Background(), refresh)
	requireUnavailable(t, err)
}

func TestSessionManager_Refresh_ConsumeUnavailable(t *testing.T) {
	manager, _, store, signer := newMockedManager(t, defaultConfig)

	refresh, err := signer.Issue("u1", model.TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	store.On("ExistsValid", mock.Anything, refresh).Return(true, nil).Once()
	store.On("Consume", mock.Anything, refresh).Return(model.RefreshToken{}, errors.New("connection reset")).Once()

	_, err = manager.Refresh(context.Background(), refresh)
	requireUnavailable(t, err)
}

func TestSessionManager_Refresh_LostRace(t *testing.T) {
	manager, _, store, signer := newMockedManager(t, defaultConfig)

	refresh, err := signer.Issue("u1", model.TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	store.On("ExistsValid", mock.Anything, refresh).Return(true, nil).Once()
	store.On("Consume", mock.Anything, refresh).Return(model.RefreshToken{}, model.ErrNotFound).Once()

	_, err = manager.Refresh(context.Background(), refresh)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
}

func TestSessionManager_Refresh_SubjectMismatch(t *testing.T) {
	manager, _, store, signer := newMockedManager(t, defaultConfig)

	refresh, err := signer.Issue("u1", model.TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	store.On("ExistsValid", mock.Anything, refresh).Return(true, nil).Once()
	store.On("Consume", mock.Anything, refresh).Return(model.RefreshToken{UserID: "u2", Token: refresh}, nil).Once()

	_, err = manager.Refresh(context.Background(), refresh)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
}

func TestSessionManager_Refresh_UnregisteredDoesNotRevokeByDefault(t *testing.T) {
	manager, _, store, signer := newMockedManager(t, defaultConfig)

	refresh, err := signer.Issue("u1", model.TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	store.On("ExistsValid", mock.Anything, refresh).Return(false, nil).Once()

	_, err = manager.Refresh(context.Background(), refresh)
	requireUnauthenticated(t, err, model.ErrNotRegistered)
	store.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
}

func TestSessionManager_Logout_SwallowsStoreErrors(t *testing.T) {
	manager, cache, store, signer := newMockedManager(t, defaultConfig)

	access, err := signer.Issue("u1", model.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	cache.On("Delete", mock.Anything, "u1").Return(errors.New("connection refused")).Once()
	store.On("DeleteByToken", mock.Anything, "refresh").Return(errors.New("connection refused")).Once()

	assert.NotPanics(t, func() {
		manager.Logout(context.Background(), access, "refresh")
	})
}

func TestSessionManager_Verify_WrapsForeignSignerErrors(t *testing.T) {
	signer := mocks.NewSigner(t)
	manager := NewSessionManager(signer, mocks.NewAccessTokenCache(t), mocks.NewRefreshTokenStore(t), defaultConfig, testutil.MakeNoopLogger())

	signer.On("Verify", "tok").Return(model.Claims{}, errors.New("bad token")).Once()

	_, err := manager.Authenticate(context.Background(), "tok")
	requireUnauthenticated(t, err, nil)
}
