package router

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/protoa/session-server/internal/api/grpc/handler"
	"github.com/protoa/session-server/internal/api/grpc/middleware"
	"github.com/protoa/session-server/internal/api/grpc/sessionv1"
	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/metrics"
	"github.com/protoa/session-server/internal/model"
)

// SessionService is everything the router needs from the session layer.
type SessionService interface {
	handler.SessionService
	middleware.Authenticator
}

// Router represents a gRPC router for session operations.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	sessionService SessionService
	contextManager model.ContextManager
	metrics        *metrics.Metrics
	issuerKey      string
	logger         *logger.Logger
	health         *health.Server
}

// New creates new gRPC Router instance.
func New(
	sessionService SessionService,
	contextManager model.ContextManager,
	metrics *metrics.Metrics,
	issuerKey string,
	logger *logger.Logger,
) *Router {
	return &Router{
		sessionService: sessionService,
		contextManager: contextManager,
		metrics:        metrics,
		issuerKey:      issuerKey,
		logger:         logger,
		health:         health.NewServer(),
	}
}

// requiresAuth selects the methods that need a bearer access token.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	return c.FullMethod() == sessionv1.Session_Me_FullMethodName
}

// Register builds the gRPC server with instrumentation, request logging and
// authentication interceptors, and registers the session, health and
// reflection services.
func (r *Router) Register() *grpc.Server {
	instrument := middleware.NewInstrument(r.metrics)
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.sessionService, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			instrument.HandleGRPC,
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
	)

	r.registerSessionRoutes(s)
	r.registerHealth(s)
	reflection.Register(s)

	return s
}

// Shutdown marks every service as not serving so load balancers drain traffic.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) registerSessionRoutes(server *grpc.Server) {
	sessionHandler := handler.NewSession(r.sessionService, r.contextManager, r.issuerKey, r.logger)
	sessionv1.RegisterSessionServer(server, sessionHandler)
}

func (r *Router) registerHealth(server *grpc.Server) {
	r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.health.SetServingStatus(sessionv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, r.health)
}
