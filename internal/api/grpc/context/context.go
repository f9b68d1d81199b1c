package context

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// subjectKey is the metadata key the authenticated subject travels under.
const (
	subjectKey string = "x-session-subject"
)

// Manager represents a gRPC context manager for subject operations.
// It stores the subject in incoming metadata so handlers read it the same
// way they read any other request attribute.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetSubjectToContext sets the subject in the incoming metadata of ctx,
// replacing any value the client may have sent under the same key.
func (m *Manager) SetSubjectToContext(ctx context.Context, subject string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(map[string]string{subjectKey: subject})
	} else {
		md = md.Copy()
		md.Set(subjectKey, subject)
	}

	return metadata.NewIncomingContext(ctx, md)
}

// GetSubjectFromContext returns the subject set by SetSubjectToContext.
func (m *Manager) GetSubjectFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	subjects := md.Get(subjectKey)
	if len(subjects) == 0 || subjects[0] == "" {
		return "", false
	}

	return subjects[0], true
}
