// Package worker contains background jobs owned by the server process.
package worker

import (
	"context"
	"time"

	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/metrics"
	"github.com/protoa/session-server/internal/model"
)

// Sweeper periodically removes refresh token rows past their expiry.
// Reads already treat such rows as absent, so sweeping only reclaims space.
type Sweeper struct {
	store    model.RefreshTokenStore
	interval time.Duration
	timeout  time.Duration
	clock    model.Clock
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewSweeper creates a Sweeper. Each pass is bounded by timeout; a nil clock
// means time.Now and nil metrics disables counting.
func NewSweeper(
	store model.RefreshTokenStore,
	interval time.Duration,
	timeout time.Duration,
	clock model.Clock,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		timeout:  timeout,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Sweeper: started", "interval", s.interval.String())

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("Sweeper: stopped")
			return
		}
	}
}

// SweepOnce runs a single pass and returns the number of rows removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.store.SweepExpired(sweepCtx, s.clock())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Sweeper: failed to delete expired refresh tokens",
				"error", err.Error())
		}
		if s.metrics != nil {
			s.metrics.SweepFailures.Inc()
		}
		return 0
	}

	if s.metrics != nil {
		s.metrics.SweptTokens.Add(float64(deleted))
	}
	if deleted > 0 {
		s.logger.Info("Sweeper: deleted expired refresh tokens",
			"count", deleted)
	}

	return deleted
}
