package client

import (
	"context"
	"net/http"

	"github.com/localparts/tokenbridge/internal/api"
	"github.com/localparts/tokenbridge/internal/core"
)

// Settings returns the server's effective configuration. The shared
// secret is redacted server-side.
func (c *Client) Settings(ctx context.Context) (map[string]any, string, error) {
	var resp map[string]any
	correlation, err := c.get(ctx, c.url().
		setPath(api.DebugSettingsRoute).
		build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return resp, correlation, nil
}

type DebugJWTResponse struct {
	OriginalFingerprint string         `json:"original_fingerprint"`
	TransformedToken    string         `json:"transformed_token"`
	DecodedToken        map[string]any `json:"decoded_token"`
	Subject             string         `json:"subject"`
}

// DebugJWT runs the server's token translation for the given inbound
// token and returns the resulting downstream token and claims.
func (c *Client) DebugJWT(ctx context.Context, inboundToken string) (*DebugJWTResponse, string, error) {
	// we do this request manually because the inbound token to translate
	// must go in the authorization header, not the client's own credential
	req, err := http.NewRequestWithContext(ctx, "GET", c.url().
		setPath(api.DebugJWTRoute).
		build(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+inboundToken)

	var resp DebugJWTResponse
	correlation, err := c.do(req, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

type ListAuditsOpts struct {
	Limit uint
}

type auditListResponse struct {
	Entries []core.AuditEntry `json:"entries"`
}

// ListAudits retrieves the latest audit entries from the server,
// limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.DebugAuditRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	var resp auditListResponse
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp.Entries, correlation, err
}

type TestConnectionResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// TestConnection asks the server to probe its upstream data API.
func (c *Client) TestConnection(ctx context.Context) (*TestConnectionResponse, string, error) {
	var resp TestConnectionResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.TestConnectionRoute).
		build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// RunTest triggers the server's self-test endpoint.
func (c *Client) RunTest(ctx context.Context) (string, error) {
	return c.post(ctx, c.url().
		setPath(api.RunTestRoute).
		build(), nil, nil)
}
