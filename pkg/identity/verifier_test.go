package identity

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticKeys is a KeySource backed by a fixed map
type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return key, nil
}

func signToken(t *testing.T, private *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(private)
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	private := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &private.PublicKey})

	raw := signToken(t, private, "kid-1", jwt.MapClaims{
		"sub":   "auth0|user-1",
		"email": "user@example.com",
		"name":  "Test User",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	claims, err := verifier.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "auth0|user-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Test User", claims.Name)
}

func TestVerifyExpiredToken(t *testing.T) {
	private := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &private.PublicKey})

	raw := signToken(t, private, "kid-1", jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongKey(t *testing.T) {
	signer := generateKey(t)
	other := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &other.PublicKey})

	raw := signToken(t, signer, "kid-1", jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingKid(t *testing.T) {
	private := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &private.PublicKey})

	raw := signToken(t, private, "", jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsHMAC(t *testing.T) {
	private := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &private.PublicKey})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "kid-1"
	raw, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingSubject(t *testing.T) {
	private := generateKey(t)
	verifier := NewVerifier(staticKeys{"kid-1": &private.PublicKey})

	raw := signToken(t, private, "kid-1", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestVerifyNoEndpointPassesThrough(t *testing.T) {
	cache := NewKeyCache("", time.Minute, testLogger())
	verifier := NewVerifier(cache)

	private := generateKey(t)
	raw := signToken(t, private, "kid-1", jwt.MapClaims{
		"sub": "auth0|user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrNoKeyEndpoint)
}
