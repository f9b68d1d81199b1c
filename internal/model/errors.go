package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no live entry exists.
var ErrNotFound = errors.New("not found")

// ErrUnauthenticated is the only credential failure visible to callers.
// The reasons below are always joined with it.
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrWrongKind        = errors.New("token kind mismatch")
	ErrNotRegistered    = errors.New("token not registered")
)

// ErrUnavailable marks backing store and network faults. Callers may retry.
var ErrUnavailable = errors.New("session store unavailable")

// Unauthenticated joins reason with ErrUnauthenticated.
func Unauthenticated(reason error) error {
	return fmt.Errorf("%w: %w", ErrUnauthenticated, reason)
}

// Unavailable wraps a store fault with ErrUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
