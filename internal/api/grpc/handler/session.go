package handler

import (
	"context"
	"crypto/subtle"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/protoa/session-server/internal/api/grpc/sessionv1"
	"github.com/protoa/session-server/internal/logger"
	"github.com/protoa/session-server/internal/model"
)

// SessionService defines the session lifecycle operations exposed over gRPC.
type SessionService interface {
	Login(ctx context.Context, subject string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, accessToken string, refreshToken string)
}

var _ sessionv1.SessionServer = (*Session)(nil)

// Session handles gRPC endpoints of the session service.
type Session struct {
	sessionService SessionService
	contextManager model.ContextManager
	issuerKey      []byte
	logger         *logger.Logger
}

// NewSession creates a new Session handler. Login calls must present issuerKey
// in the x-issuer-key metadata entry.
func NewSession(sessionService SessionService, contextManager model.ContextManager, issuerKey string, logger *logger.Logger) *Session {
	return &Session{
		sessionService: sessionService,
		contextManager: contextManager,
		issuerKey:      []byte(issuerKey),
		logger:         logger,
	}
}

// Login opens a session for an identity the front end has already verified.
func (h *Session) Login(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if !h.trustedIssuer(ctx) {
		h.logger.Warn("Session handler: login from untrusted caller")
		return nil, status.Error(codes.PermissionDenied, "issuer key required")
	}

	subject := req.GetValue()
	if subject == "" {
		return nil, status.Error(codes.InvalidArgument, "subject is required")
	}

	h.logger.Debug("Session handler: processing login request",
		"subject", subject)

	pair, err := h.sessionService.Login(ctx, subject)
	if err != nil {
		h.logger.Error("Session handler: login failed",
			"subject", subject,
			"error", err.Error())
		return nil, ToStatus(err)
	}

	return tokenPairResponse(pair)
}

// Refresh rotates the session the presented refresh token belongs to.
func (h *Session) Refresh(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	pair, err := h.sessionService.Refresh(ctx, req.GetValue())
	if err != nil {
		h.logger.Info("Session handler: refresh rejected",
			"error", err.Error())
		return nil, ToStatus(err)
	}

	return tokenPairResponse(pair)
}

// Logout clears the server-side state of whichever tokens were presented.
func (h *Session) Logout(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	// A missing or malformed authorization header only means there is no
	// access token to revoke.
	accessToken, _ := auth.AuthFromMD(ctx, "bearer")

	h.sessionService.Logout(ctx, accessToken, req.GetValue())

	return &emptypb.Empty{}, nil
}

// Me returns the subject attached to the context by the authenticate middleware.
func (h *Session) Me(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	subject, ok := h.contextManager.GetSubjectFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
	}

	return wrapperspb.String(subject), nil
}

func (h *Session) trustedIssuer(ctx context.Context) bool {
	if len(h.issuerKey) == 0 {
		return false
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}

	keys := md.Get(sessionv1.IssuerKeyHeader)
	if len(keys) == 0 {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(keys[0]), h.issuerKey) == 1
}

func tokenPairResponse(pair model.TokenPair) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{
		sessionv1.FieldAccessToken:      pair.AccessToken,
		sessionv1.FieldRefreshToken:     pair.RefreshToken,
		sessionv1.FieldTokenType:        "Bearer",
		sessionv1.FieldExpiresIn:        float64(pair.AccessTTLSeconds),
		sessionv1.FieldRefreshExpiresIn: float64(pair.RefreshTTLSeconds),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, msgInternal)
	}

	return resp, nil
}
