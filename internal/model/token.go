package model

import "time"

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	// TokenKindAccess is carried by tokens checked on every protected request.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is carried by tokens exchanged for a new pair.
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is one of the known kinds.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Claims is the decoded payload of a signed token.
type Claims struct {
	Subject   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	// JTI is set for refresh tokens only.
	JTI string
}

// Signer creates and verifies signed tokens.
type Signer interface {
	Issue(subject string, kind TokenKind, ttl time.Duration) (string, error)
	Verify(token string) (Claims, error)
}

// TokenPair is returned to callers on login and refresh.
type TokenPair struct {
	AccessToken       string
	RefreshToken      string
	AccessTTLSeconds  int64
	RefreshTTLSeconds int64
}
