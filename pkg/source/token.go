package source

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningKeyTooShort is returned for HMAC keys under 32 bytes.
var ErrSigningKeyTooShort = errors.New("signing key must be at least 32 characters")

// TokenSource supplies the bearer token sent to the file-store.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer token, as read from AUTHORIZATION.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// SignerConfig configures short-lived HS256 tokens.
type SignerConfig struct {
	// SigningKey is the shared HMAC secret. Must be at least 32 characters.
	SigningKey string

	// Issuer is the iss claim. Default: "ferry"
	Issuer string

	// Subject is the sub claim.
	Subject string

	// TTL is the token lifetime. Default: 5 minutes.
	TTL time.Duration
}

// Signer mints HS256 tokens and reuses one until it is close to expiry.
type Signer struct {
	cfg SignerConfig
	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "ferry"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Signer{cfg: cfg, now: time.Now}, nil
}

// Token returns the cached token, minting a new one once less than a tenth
// of the TTL remains.
func (s *Signer) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-s.cfg.TTL/10)) {
		return s.token, nil
	}

	expires := now.Add(s.cfg.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   s.cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SigningKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign source token: %w", err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}
