// auth issues and verifies editor tokens.
//
// Editor tokens are JWTs signed with HS256 by a shared secret.
// The subject of a token is the author recorded on knowl edits.
package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("secret is empty")
)

// EditorClaims are claims of editor tokens.
type EditorClaims struct {
	jwt.RegisteredClaims
}

// Author is who is permitted to edit by the token.
func (c *EditorClaims) Author() string {
	return c.Subject
}

type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

type Option func(*Signer) *Signer

func WithClock(clock func() time.Time) Option {
	return func(s *Signer) *Signer {
		s.clock = clock
		return s
	}
}

// New creates a Signer.
//
// # Args
//
// - secret: HMAC key. It should not be empty.
//
// - issuer: "iss" claim of tokens.
//
// - ttl: lifetime of tokens.
func New(secret []byte, issuer string, ttl time.Duration, options ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	s := &Signer{secret: secret, issuer: issuer, ttl: ttl, clock: time.Now}
	for _, opt := range options {
		s = opt(s)
	}
	return s, nil
}

// LoadSecret reads a secret from file. Surrounding whitespaces are trimmed.
func LoadSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSecret, path)
	}
	return b, nil
}

// Issue creates a token for subject.
//
// # Args
//
// - subject: author id.
//
// - ttl: lifetime of the token. If it is not positive, default ttl of the Signer is used.
func (s *Signer) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is empty")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.clock().Truncate(time.Second)
	claims := &EditorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses token and verifies its signature, issuer and expiry.
//
// # Returns
//
// - *EditorClaims: claims in the token.
//
// - error: wrapping ErrInvalidToken when the token is not acceptable.
func (s *Signer) Verify(token string) (*EditorClaims, error) {
	claims := new(EditorClaims)
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}
