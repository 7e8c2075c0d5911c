package source

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewSignerRejectsShortKey(t *testing.T) {
	_, err := NewSigner(SignerConfig{SigningKey: "short"})
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)
}

func TestSignerClaims(t *testing.T) {
	s, err := NewSigner(SignerConfig{SigningKey: testKey, Subject: "ferry-worker"})
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte(testKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "ferry", claims.Issuer)
	assert.Equal(t, "ferry-worker", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSignerCachesUntilNearExpiry(t *testing.T) {
	s, err := NewSigner(SignerConfig{SigningKey: testKey, TTL: time.Minute})
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	first, err := s.Token()
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	again, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	now = now.Add(5 * time.Second)
	renewed, err := s.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, renewed)
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
