package handler

import (
	"errors"

	"github.com/protoa/session-server/internal/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Fixed messages sent to clients. Causes stay in the server log.
const (
	msgUnauthenticated = "unauthenticated"
	msgUnavailable     = "session store unavailable"
	msgInternal        = "internal server error"
)

// ToStatus converts a session error into the gRPC status returned to clients.
func ToStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, msgUnauthenticated)
	case errors.Is(err, model.ErrUnavailable):
		return status.Error(codes.Unavailable, msgUnavailable)
	default:
		return status.Error(codes.Internal, msgInternal)
	}
}
