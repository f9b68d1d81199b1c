package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/protoa/session-server/internal/metrics"
)

// Instrument is a unary interceptor that records request counts and latency.
type Instrument struct {
	metrics *metrics.Metrics
}

// NewInstrument creates a new Instrument middleware.
func NewInstrument(m *metrics.Metrics) *Instrument {
	return &Instrument{metrics: m}
}

// HandleGRPC observes every unary request by method and status code.
func (i *Instrument) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	i.metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	i.metrics.RPCRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()

	return resp, err
}
