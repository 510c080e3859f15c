package provision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/localparts/tokenbridge/internal/token"
)

const testSecret = "reallyreallyreallyreallyverysafesecret"

func newMinter() *token.Minter {
	return token.NewMinter([]byte(testSecret), "localparts", time.Hour, "authenticator")
}

func TestEnsureRole(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ok     bool
	}{
		{"created", http.StatusOK, true},
		{"already exists", http.StatusNoContent, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := New(srv.URL, "create_user_role", newMinter(), 0, nil)
			err := p.EnsureRole(context.Background(), "u1")
			if tt.ok && err != nil {
				t.Fatalf("EnsureRole failed: %v", err)
			}
			if !tt.ok {
				var provErr *Error
				if !errors.As(err, &provErr) {
					t.Fatalf("error = %v (%T), want provision.Error", err, err)
				}
				if provErr.Status != tt.status {
					t.Errorf("status = %d, want %d", provErr.Status, tt.status)
				}
			}
		})
	}
}

func TestEnsureRoleRequestShape(t *testing.T) {
	minter := newMinter()

	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(srv.URL+"/", "create_user_role", minter, 0, nil)
	if err := p.EnsureRole(context.Background(), "u1"); err != nil {
		t.Fatalf("EnsureRole failed: %v", err)
	}

	if got.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.Method)
	}
	if got.URL.Path != "/rpc/create_user_role" {
		t.Errorf("path = %s, want /rpc/create_user_role", got.URL.Path)
	}
	if ct := got.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	if prefer := got.Header.Get("Prefer"); prefer != "return=minimal" {
		t.Errorf("prefer = %q, want return=minimal", prefer)
	}

	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if body["user_id"] != "u1" {
		t.Errorf("user_id = %q, want u1", body["user_id"])
	}

	// the bearer credential must be the privileged service token
	raw, ok := strings.CutPrefix(got.Header.Get("Authorization"), "Bearer ")
	if !ok {
		t.Fatal("authorization header is not a bearer token")
	}
	claims, err := minter.Decode(raw)
	if err != nil {
		t.Fatalf("decoding service token: %v", err)
	}
	if claims["role"] != "authenticator" {
		t.Errorf("service token role = %v, want authenticator", claims["role"])
	}
}

// Provisioning the same subject twice must succeed both times; the
// upstream RPC is idempotent.
func TestEnsureRoleIdempotent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(srv.URL, "create_user_role", newMinter(), 0, nil)
	for i := 0; i < 2; i++ {
		if err := p.EnsureRole(context.Background(), "u1"); err != nil {
			t.Fatalf("EnsureRole call %d failed: %v", i+1, err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("RPC calls = %d, want 2 (memo disabled)", n)
	}
}

func TestEnsureRoleMemoSkipsRedundantCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(srv.URL, "create_user_role", newMinter(), time.Minute, nil)
	for i := 0; i < 3; i++ {
		if err := p.EnsureRole(context.Background(), "u1"); err != nil {
			t.Fatalf("EnsureRole failed: %v", err)
		}
	}
	if err := p.EnsureRole(context.Background(), "u2"); err != nil {
		t.Fatalf("EnsureRole for second subject failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("RPC calls = %d, want 2 (one per subject)", n)
	}
}

// A failed provisioning call must not populate the memo.
func TestEnsureRoleFailureNotMemoized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(srv.URL, "create_user_role", newMinter(), time.Minute, nil)
	if err := p.EnsureRole(context.Background(), "u1"); err == nil {
		t.Fatal("EnsureRole succeeded, want error")
	}
	if err := p.EnsureRole(context.Background(), "u1"); err != nil {
		t.Fatalf("EnsureRole retry failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("RPC calls = %d, want 2", n)
	}
}

func TestEnsureRoleTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p := New(srv.URL, "create_user_role", newMinter(), 0, nil)
	var provErr *Error
	if err := p.EnsureRole(context.Background(), "u1"); !errors.As(err, &provErr) {
		t.Errorf("error = %v, want provision.Error", err)
	}
}
