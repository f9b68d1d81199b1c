// Package ops serves the operational HTTP endpoints: liveness, readiness and metrics.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/protoa/session-server/internal/logger"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions configures the ops router.
type RouterOptions struct {
	// Checks are pinged on every /readyz request, keyed by the name reported in the response.
	Checks       map[string]Pinger
	Metrics      http.Handler
	CheckTimeout time.Duration
	// RequestsPerMinute limits each client IP. Zero disables the limit.
	RequestsPerMinute int
	Logger            *logger.Logger
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Router builds the HTTP router with health, readiness and metrics routes.
func Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if opts.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", readyHandler(opts))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}

func readyHandler(opts RouterOptions) http.HandlerFunc {
	timeout := opts.CheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	names := make([]string, 0, len(opts.Checks))
	for name := range opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()

		body := readiness{Status: "ready", Checks: make(map[string]string, len(names))}
		code := http.StatusOK

		for _, name := range names {
			if err := opts.Checks[name].Ping(ctx); err != nil {
				if opts.Logger != nil {
					opts.Logger.Warn("Ops router: readiness check failed",
						"check", name,
						"error", err.Error())
				}
				body.Checks[name] = "unavailable"
				body.Status = "not ready"
				code = http.StatusServiceUnavailable
				continue
			}
			body.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
