package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func jwksFor(kid string, pub *rsa.PublicKey) map[string]interface{} {
	e := big.NewInt(int64(pub.E))
	return map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(e.Bytes()),
		}},
	}
}

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		json.NewEncoder(w).Encode(jwksFor(kid, pub))
	}))
	t.Cleanup(server.Close)
	return server
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestKeyCacheFetchesAndCaches(t *testing.T) {
	private := generateKey(t)
	var hits int32
	server := jwksServer(t, "kid-1", &private.PublicKey, &hits)

	cache := NewKeyCache(server.URL, time.Minute, testLogger())

	for i := 0; i < 5; i++ {
		key, err := cache.Key(context.Background(), "kid-1")
		require.NoError(t, err)
		assert.Equal(t, private.PublicKey.N, key.N)
	}

	// Only the first lookup should hit the endpoint within the TTL
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestKeyCacheUnknownKid(t *testing.T) {
	private := generateKey(t)
	server := jwksServer(t, "kid-1", &private.PublicKey, nil)

	cache := NewKeyCache(server.URL, time.Minute, testLogger())

	_, err := cache.Key(context.Background(), "kid-2")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
}

func TestKeyCacheNoEndpoint(t *testing.T) {
	cache := NewKeyCache("", time.Minute, testLogger())

	_, err := cache.Key(context.Background(), "kid-1")
	assert.ErrorIs(t, err, ErrNoKeyEndpoint)
}

func TestKeyCacheServesStaleOnRefreshFailure(t *testing.T) {
	private := generateKey(t)
	var fail atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(jwksFor("kid-1", &private.PublicKey))
	}))
	t.Cleanup(server.Close)

	// A tiny TTL forces a refresh attempt on the second lookup
	cache := NewKeyCache(server.URL, time.Nanosecond, testLogger())

	_, err := cache.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	fail.Store(true)
	key, err := cache.Key(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, private.PublicKey.N, key.N)
}

func TestKeyCacheEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cache := NewKeyCache(server.URL, time.Minute, testLogger())

	_, err := cache.Key(context.Background(), "kid-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusServiceUnavailable))
}
