package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	grpcctx "github.com/protoa/session-server/internal/api/grpc/context"
	"github.com/protoa/session-server/internal/api/grpc/router"
	grpcServer "github.com/protoa/session-server/internal/api/grpc/server"
	"github.com/protoa/session-server/internal/api/ops"
	"github.com/protoa/session-server/internal/config"
	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/metrics"
	"github.com/protoa/session-server/internal/model"
	"github.com/protoa/session-server/internal/repository/memory"
	"github.com/protoa/session-server/internal/repository/postgres"
	"github.com/protoa/session-server/internal/server"
	"github.com/protoa/session-server/internal/service"
	redisstore "github.com/protoa/session-server/internal/storage/redis"
	"github.com/protoa/session-server/internal/token"
	"github.com/protoa/session-server/internal/worker"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const (
	shutdownTimeout = 10 * time.Second
	sweepTimeout    = 30 * time.Second
	opsRateLimit    = 600
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	if len(cfg.JWT.Secret) < token.KeySize {
		logger.Warn("JWT secret is shorter than the signing key and will be zero-padded",
			"secret_bytes", len(cfg.JWT.Secret),
			"key_bytes", token.KeySize)
	}

	redisClient, err := redisstore.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Fatal("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()
	accessTokenCache := redisstore.NewAccessTokenCache(redisClient)

	checks := map[string]ops.Pinger{"redis": accessTokenCache}

	var refreshTokenStore model.RefreshTokenStore
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory refresh token store, sessions will not survive a restart")
		refreshTokenStore = memory.NewRefreshTokenStore(nil)
	default:
		db, err := postgres.NewConection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()
		refreshTokenStore = postgres.NewRefreshTokenRepository(db, nil)
		checks["postgres"] = db
	}

	signer := token.NewJWT(cfg.JWT.Secret, nil)
	sessionManager := service.NewSessionManager(signer, accessTokenCache, refreshTokenStore, service.SessionConfig{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		StoreTimeout:  cfg.Session.StoreTimeout,
		RevokeOnReuse: cfg.Session.RevokeOnReuse,
	}, logger)

	m := metrics.New()
	grpcRouter := router.New(sessionManager, grpcctx.NewManager(), m, cfg.Session.IssuerKey, logger)
	sessionServer := grpcServer.NewGRPCServer(grpcRouter.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))

	opsServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: ops.Router(ops.RouterOptions{
			Checks:            checks,
			Metrics:           m.Handler(),
			CheckTimeout:      cfg.Session.StoreTimeout,
			RequestsPerMinute: opsRateLimit,
			Logger:            logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweeper := worker.NewSweeper(refreshTokenStore, cfg.Sweep.Interval, sweepTimeout, nil, m, logger.With("component", "sweeper"))

	var sl model.SecurityLayer

	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		logger.Warn("gRPC server runs without TLS, tokens travel in plain text")
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(sessionServer)

	go func() {
		defer wg.Done()
		logger.Info("Starting ops endpoint on", "address", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start ops endpoint", "error", err)
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	grpcRouter.Shutdown()

	if err := sessionServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", sessionServer.Address())
	}

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during ops endpoint shutdown", "error", err, "address", opsServer.Addr)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
