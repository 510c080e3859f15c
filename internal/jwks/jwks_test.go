package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

func testKeySet(t *testing.T, kids ...string) (jose.JSONWebKeySet, []byte) {
	t.Helper()
	set := jose.JSONWebKeySet{}
	for _, kid := range kids {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating key: %v", err)
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &key.PublicKey,
			KeyID:     kid,
			Algorithm: "RS256",
			Use:       "sig",
		})
	}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshaling key set: %v", err)
	}
	return set, body
}

func TestKeyCachesAfterFirstFetch(t *testing.T) {
	_, body := testKeySet(t, "k1")

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.URL, 0, nil)
	for i := 0; i < 5; i++ {
		key, err := cache.Key(context.Background(), "k1")
		if err != nil {
			t.Fatalf("Key failed: %v", err)
		}
		if key.ID != "k1" {
			t.Errorf("key ID = %q, want k1", key.ID)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestKeySelection(t *testing.T) {
	_, body := testKeySet(t, "first", "second")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		kid  string
		want string
	}{
		{"matching kid", "second", "second"},
		{"empty kid falls back to first", "", "first"},
		{"unknown kid falls back to first", "nope", "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache(srv.URL, 0, nil)
			key, err := cache.Key(context.Background(), tt.kid)
			if err != nil {
				t.Fatalf("Key failed: %v", err)
			}
			if key.ID != tt.want {
				t.Errorf("key ID = %q, want %q", key.ID, tt.want)
			}
		})
	}
}

func TestKeyExpiresAfterTTL(t *testing.T) {
	_, body := testKeySet(t, "k1")

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.URL, time.Minute, nil)
	if _, err := cache.Key(context.Background(), ""); err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	// age the cache past its TTL
	cache.mu.Lock()
	cache.fetched = time.Now().Add(-2 * time.Minute)
	cache.mu.Unlock()

	if _, err := cache.Key(context.Background(), ""); err != nil {
		t.Fatalf("Key after expiry failed: %v", err)
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	_, body := testKeySet(t, "k1")

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.URL, 0, nil)
	if _, err := cache.Key(context.Background(), ""); err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	cache.Invalidate()
	if _, err := cache.Key(context.Background(), ""); err != nil {
		t.Fatalf("Key after invalidate failed: %v", err)
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200 status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}},
		{"empty key set", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"keys": []}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cache := NewCache(srv.URL, 0, nil)
			_, err := cache.Key(context.Background(), "")
			if err == nil {
				t.Fatal("Key succeeded, want error")
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Errorf("error = %v (%T), want FetchError", err, err)
			}
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // deliberately unreachable

	cache := NewCache(srv.URL, 0, nil)
	var fetchErr *FetchError
	if _, err := cache.Key(context.Background(), ""); !errors.As(err, &fetchErr) {
		t.Errorf("error = %v, want FetchError", err)
	}
}
