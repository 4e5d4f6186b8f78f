package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Token verification errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("token has no subject")
)

// Claims are the claims extracted from a verified bearer token
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier validates RS256 bearer tokens against a signing key source
type Verifier struct {
	keys KeySource
}

// NewVerifier creates a token verifier
func NewVerifier(keys KeySource) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses and validates a raw bearer token. The signing key is
// selected by the token's kid header; only RSA signatures are accepted.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrNoKeyEndpoint) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrNoSubject
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Claims{
		Subject: subject,
		Email:   email,
		Name:    name,
	}, nil
}
