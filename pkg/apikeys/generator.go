package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretPrefix identifies Inkwell API keys
	SecretPrefix = "inkwell_"
	// SecretLength is the total length of random bytes (32 bytes = 256 bits)
	SecretLength = 32
)

// Generator generates API key secrets and computes their storage hashes.
// The pepper is a deployment-wide salt mixed into every hash so a leaked
// key table cannot be matched against precomputed digests.
type Generator struct {
	pepper string
}

// NewGenerator creates a generator with the given hash pepper
func NewGenerator(pepper string) *Generator {
	return &Generator{pepper: pepper}
}

// Generate creates a new API key secret.
// Format: inkwell_<base64url(32 random bytes)>
// The plaintext is returned exactly once; only the hash is stored.
func (g *Generator) Generate() (secret string, hash string, prefix string, err error) {
	randomBytes := make([]byte, SecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	secret = SecretPrefix + encoded
	hash = g.HashSecret(secret)

	// First 8 chars after the prefix identify the key in listings
	prefix = SecretPrefix
	if len(encoded) >= 8 {
		prefix = SecretPrefix + encoded[:8]
	}

	return secret, hash, prefix, nil
}

// HashSecret computes the salted SHA-256 hash of a secret for lookup
func (g *Generator) HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(g.pepper + secret))
	return hex.EncodeToString(sum[:])
}

// ValidateFormat checks if a presented secret has the correct shape
func (g *Generator) ValidateFormat(secret string) error {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return fmt.Errorf("key must start with %q", SecretPrefix)
	}

	encoded := strings.TrimPrefix(secret, SecretPrefix)
	if len(encoded) == 0 {
		return fmt.Errorf("key is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}

	return nil
}
