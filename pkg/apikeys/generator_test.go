package apikeys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator("test-pepper")

	secret, hash, prefix, err := gen.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, SecretPrefix))
	assert.Len(t, hash, 64) // hex-encoded SHA-256
	assert.Equal(t, secret[:len(prefix)], prefix)
	assert.Equal(t, gen.HashSecret(secret), hash)
	assert.NoError(t, gen.ValidateFormat(secret))
}

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator("test-pepper")
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		secret, _, _, err := gen.Generate()
		require.NoError(t, err)
		require.False(t, seen[secret], "duplicate secret generated")
		seen[secret] = true
	}
}

func TestHashDependsOnPepper(t *testing.T) {
	a := NewGenerator("pepper-a")
	b := NewGenerator("pepper-b")

	secret := SecretPrefix + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	assert.NotEqual(t, a.HashSecret(secret), b.HashSecret(secret))
	assert.Equal(t, a.HashSecret(secret), a.HashSecret(secret))
}

func TestValidateFormat(t *testing.T) {
	gen := NewGenerator("test-pepper")

	assert.Error(t, gen.ValidateFormat("sk_live_abc123"))
	assert.Error(t, gen.ValidateFormat(""))
	assert.Error(t, gen.ValidateFormat(SecretPrefix))
	assert.Error(t, gen.ValidateFormat(SecretPrefix+"not base64!!"))
}
