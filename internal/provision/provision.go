// Package provision guarantees that a per-subject role record exists on
// the data API before the first forwarded request from that subject.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/localparts/tokenbridge/internal/token"
)

// Error indicates the role-creation RPC failed. The request that
// triggered provisioning must not be forwarded without it.
type Error struct {
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning role: %v", e.Err)
	}
	return fmt.Sprintf("provisioning role: upstream returned %d: %s", e.Status, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Provisioner calls the data API's role-creation RPC with a freshly
// minted service token. Creation is idempotent on the API side, so 200
// and 204 are both success.
type Provisioner struct {
	endpoint string
	minter   *token.Minter
	client   *http.Client

	// seen memoizes already-provisioned subjects for a bounded time.
	// nil means every request pays the provisioning call.
	seen *gocache.Cache
}

// New creates a Provisioner targeting <upstream>/rpc/<rpc>. A zero
// memoTTL disables the already-provisioned memo. A nil client uses
// http.DefaultClient.
func New(upstream, rpc string, minter *token.Minter, memoTTL time.Duration, client *http.Client) *Provisioner {
	if client == nil {
		client = http.DefaultClient
	}
	p := &Provisioner{
		endpoint: strings.TrimSuffix(upstream, "/") + "/rpc/" + rpc,
		minter:   minter,
		client:   client,
	}
	if memoTTL > 0 {
		p.seen = gocache.New(memoTTL, 2*memoTTL)
	}
	return p
}

// EnsureRole guarantees the subject's role record exists. Calling it
// twice for the same subject succeeds both times.
func (p *Provisioner) EnsureRole(ctx context.Context, subject string) error {
	if p.seen != nil {
		if _, ok := p.seen.Get(subject); ok {
			return nil
		}
	}

	serviceToken, err := p.minter.MintService()
	if err != nil {
		return &Error{Err: err}
	}

	payload, err := json.Marshal(map[string]string{"user_id": subject})
	if err != nil {
		return &Error{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &Error{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Status: resp.StatusCode, Body: string(body)}
	}

	log.Ctx(ctx).Debug().Str("subject", subject).Msg("role provisioned")
	if p.seen != nil {
		p.seen.SetDefault(subject, struct{}{})
	}
	return nil
}
