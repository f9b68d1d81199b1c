package middleware

import (
	"context"
	"errors"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/protoa/session-server/internal/api/grpc/handler"
	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/model"
)

// Authenticator resolves the subject of a bearer access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Authenticate validates bearer tokens and injects the subject into context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the authorization metadata, authenticates the token and
// returns a context carrying the subject.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	token, err := auth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	subject, err := m.authenticator.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrUnavailable) {
			m.logger.Error("Authenticate middleware: session store unavailable",
				"error", err.Error())
		} else {
			m.logger.Debug("Authenticate middleware: token rejected",
				"error", err.Error())
		}
		return nil, handler.ToStatus(err)
	}

	return m.contextManager.SetSubjectToContext(ctx, subject), nil
}
