package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/protoa/session-server/internal/model"
)

// KeySize is the HMAC-SHA256 key length secrets are normalized to.
const KeySize = 32

// Claims is the wire payload: sub, type, iat, exp and, for refresh tokens, jti.
// Access tokens carry a random nonce instead so that two issued within the
// same second still differ.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
	Nonce     string `json:"nonce,omitempty"`
}

var _ model.Signer = (*JWT)(nil)

// JWT implements Signer backed by symmetric HS256.
type JWT struct {
	key    []byte
	clock  model.Clock
	parser *jwt.Parser
}

// NewJWT creates a signer for the given secret. A nil clock means time.Now.
func NewJWT(secret string, clock model.Clock) *JWT {
	if clock == nil {
		clock = time.Now
	}
	return &JWT{
		key:   NormalizeKey(secret),
		clock: clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock),
		),
	}
}

// NormalizeKey zero-pads or truncates secret to exactly KeySize bytes.
//
// Operators may configure a memorable secret of any length. Secrets shorter
// than KeySize carry less entropy than the key size suggests, and bytes past
// KeySize are ignored.
func NormalizeKey(secret string) []byte {
	key := make([]byte, KeySize)
	copy(key, secret)
	return key
}

// Issue signs a token of the given kind for subject, valid for ttl from now.
func (j *JWT) Issue(subject string, kind model.TokenKind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("non-positive ttl %s", ttl)
	}

	now := j.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: string(kind),
	}
	if kind == model.TokenKindRefresh {
		claims.ID = uuid.NewString()
	} else {
		claims.Nonce = uuid.NewString()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return tokenString, nil
}

// Verify checks signature and expiry and decodes the claims.
// Kind rules are left to the caller.
//
// A correctly signed token past its expiry yields the decoded claims together
// with an ErrExpired error.
func (j *JWT) Verify(tokenString string) (model.Claims, error) {
	claims := &Claims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, j.keyFunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return model.Claims{}, reject(model.ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return model.Claims{}, reject(model.ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			decoded, decodeErr := decode(claims)
			if decodeErr != nil {
				return model.Claims{}, decodeErr
			}
			return decoded, reject(model.ErrExpired, err)
		default:
			return model.Claims{}, reject(model.ErrMalformed, err)
		}
	}

	return decode(claims)
}

func (j *JWT) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
	}
	return j.key, nil
}

func decode(c *Claims) (model.Claims, error) {
	kind := model.TokenKind(c.TokenType)
	if !kind.Valid() {
		return model.Claims{}, reject(model.ErrMalformed, fmt.Errorf("unknown token type %q", c.TokenType))
	}
	if c.Subject == "" {
		return model.Claims{}, reject(model.ErrMalformed, errors.New("missing subject"))
	}
	if kind == model.TokenKindRefresh && c.ID == "" {
		return model.Claims{}, reject(model.ErrMalformed, errors.New("refresh token without jti"))
	}

	out := model.Claims{
		Subject: c.Subject,
		Kind:    kind,
		JTI:     c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

func reject(reason error, cause error) error {
	return fmt.Errorf("%w: %v", model.Unauthenticated(reason), cause)
}
