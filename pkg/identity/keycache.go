package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

// DefaultKeyTTL is how long fetched signing keys are served before a
// refresh is attempted.
const DefaultKeyTTL = 15 * time.Minute

// ErrNoKeyEndpoint reports that no signing-key endpoint is configured.
// Token verification cannot proceed without one.
var ErrNoKeyEndpoint = errors.New("signing key endpoint not configured")

// ErrUnknownKeyID reports that the token's key ID is not present in the
// current key set.
var ErrUnknownKeyID = errors.New("unknown signing key id")

// KeySource provides RSA public keys by key ID
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// KeyCache fetches a JWKS document from a remote endpoint and caches the
// parsed RSA keys for a TTL. Reads take a read lock; a refresh takes the
// write lock and replaces the whole set.
type KeyCache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger *observability.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyCache creates a key cache for the given JWKS endpoint. A zero ttl
// uses DefaultKeyTTL.
func NewKeyCache(url string, ttl time.Duration, logger *observability.Logger) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyCache{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Key returns the RSA public key for kid, refreshing the cached set if it
// is stale. A kid that is still missing after a fresh fetch is reported as
// ErrUnknownKeyID.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if c.url == "" {
		return nil, ErrNoKeyEndpoint
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		// Serve a stale key over failing the request when the endpoint
		// is briefly unreachable.
		if ok {
			c.logger.WithError(err).Warn("signing key refresh failed, serving cached key")
			return key, nil
		}
		return nil, err
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return key, nil
}

func (c *KeyCache) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if time.Since(c.fetchedAt) < c.ttl && len(c.keys) > 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build signing key request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch signing keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("signing key endpoint returned status %d", resp.StatusCode)
	}

	keys, err := parseJWKS(resp.Body)
	if err != nil {
		return err
	}

	c.keys = keys
	c.fetchedAt = time.Now()
	c.logger.WithField("keys", len(keys)).Debug("refreshed signing key set")
	return nil
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseJWKS(r io.Reader) (map[string]*rsa.PublicKey, error) {
	var doc jwksDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode signing key document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func rsaKeyFromJWK(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, errors.New("zero exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
