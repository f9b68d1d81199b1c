// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"

	"github.com/protoa/session-server/internal/logger"
)

// MakeNoopLogger returns a logger that discards every record.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, 0)
}
