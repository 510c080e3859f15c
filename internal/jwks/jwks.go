// Package jwks fetches and caches the identity provider's published
// signing keys. The cache holds the full key set in process memory,
// bounded by a maximum age, and can be invalidated when a verification
// failure suggests the provider rotated its keys.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"
)

// maxResponseBytes bounds the JWKS response we are willing to parse.
const maxResponseBytes = 1 << 20

// FetchError indicates the key-publication endpoint was unreachable or
// returned something unusable. From the caller's perspective this is an
// authentication-layer failure, not a generic server error.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching JWKS from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Key is a single verification key from the provider's published set.
type Key struct {
	ID        string
	Algorithm string
	Public    any
}

// Cache lazily fetches the provider's key set and serves it from memory.
// Concurrent first calls may each fetch; the last write wins, which is
// benign because the provider returns the same set every time.
type Cache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu      sync.Mutex
	keys    []Key
	fetched time.Time
}

// NewCache creates a key cache for the given JWKS endpoint. A zero ttl
// means fetched keys never expire. A nil client uses http.DefaultClient.
func NewCache(url string, ttl time.Duration, client *http.Client) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

// Key returns the verification key matching the given key ID, fetching
// the set from the provider if the cache is empty or stale. An empty kid,
// or a kid not present in the set, selects the first published key.
func (c *Cache) Key(ctx context.Context, kid string) (*Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale() {
		keys, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.keys = keys
		c.fetched = time.Now()
		log.Ctx(ctx).Info().
			Int("keys", len(keys)).
			Str("url", c.url).
			Msg("fetched and cached verification keys")
	}

	if kid != "" {
		for i := range c.keys {
			if c.keys[i].ID == kid {
				return &c.keys[i], nil
			}
		}
		log.Ctx(ctx).Debug().
			Str("kid", kid).
			Msg("no key matching token kid, falling back to first key")
	}
	return &c.keys[0], nil
}

// Invalidate drops the cached key set so the next call refetches it.
// The verifier calls this after a signature failure that may indicate
// key rotation.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.fetched = time.Time{}
}

func (c *Cache) stale() bool {
	if len(c.keys) == 0 {
		return true
	}
	if c.ttl <= 0 {
		return false
	}
	return time.Since(c.fetched) > c.ttl
}

func (c *Cache) fetch(ctx context.Context) ([]Key, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL: c.url,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("reading response: %w", err)}
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("parsing key set: %w", err)}
	}
	if len(set.Keys) == 0 {
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("key set is empty")}
	}

	keys := make([]Key, 0, len(set.Keys))
	for _, k := range set.Keys {
		pub := k.Public()
		if !pub.Valid() {
			continue
		}
		keys = append(keys, Key{
			ID:        pub.KeyID,
			Algorithm: pub.Algorithm,
			Public:    pub.Key,
		})
	}
	if len(keys) == 0 {
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("no usable public keys in set")}
	}
	return keys, nil
}
