// Package proxy implements the request-forwarding path: inbound tokens
// are translated to downstream ones, headers and bodies are rewritten,
// and the upstream response is relayed verbatim.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/localparts/tokenbridge/internal/api/presenter"
	"github.com/localparts/tokenbridge/internal/core"
	"github.com/localparts/tokenbridge/internal/jwks"
	"github.com/localparts/tokenbridge/internal/provision"
	"github.com/localparts/tokenbridge/internal/token"
)

// userIDField is the body field the row-level-security policy binds
// rows to. It is always overwritten from the verified subject, never
// trusted from the client.
const userIDField = "user_id"

// hopHeaders are connection-scoped and must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder is the catch-all handler that proxies requests to the data
// API after translating the bearer credential.
type Forwarder struct {
	upstream    string
	verifier    *token.Verifier
	minter      *token.Minter
	provisioner *provision.Provisioner
	auditor     core.Auditor
	client      *http.Client

	audience string
	reserved map[string]struct{}
}

// NewForwarder builds the forwarder. The reserved paths are the
// operational endpoints served by the API mux; a proxied request
// targeting one of them (for example with a method the mux does not
// route) is answered 404 instead of being forwarded.
func NewForwarder(
	upstream string,
	verifier *token.Verifier,
	minter *token.Minter,
	provisioner *provision.Provisioner,
	auditor core.Auditor,
	audience string,
	reserved []string,
	client *http.Client,
) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	res := make(map[string]struct{}, len(reserved))
	for _, p := range reserved {
		res[strings.Trim(p, "/")] = struct{}{}
	}
	return &Forwarder{
		upstream:    strings.TrimSuffix(upstream, "/"),
		verifier:    verifier,
		minter:      minter,
		provisioner: provisioner,
		auditor:     auditor,
		client:      client,
		audience:    audience,
		reserved:    res,
	}
}

// Translate verifies an inbound bearer token and mints the downstream
// equivalent. It is also used by the debug endpoints.
func (f *Forwarder) Translate(ctx context.Context, raw string) (string, *token.Claims, error) {
	claims, err := f.verifier.Verify(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	minted, err := f.minter.Mint(claims)
	if err != nil {
		return "", nil, err
	}
	return minted, claims, nil
}

// StatusFor maps pipeline errors to the caller-visible status code.
// Invalid tokens and key-fetch failures are authentication failures;
// everything else is a server error.
func StatusFor(err error) int {
	var invalid *token.InvalidTokenError
	if errors.As(err, &invalid) {
		return http.StatusUnauthorized
	}
	var fetch *jwks.FetchError
	if errors.As(err, &fetch) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	path := strings.Trim(r.URL.Path, "/")
	if _, ok := f.reserved[path]; ok {
		presenter.Error(w, r, "not found", http.StatusNotFound)
		return
	}

	entry := core.AuditEntry{
		ID:     presenter.CorrelationID(r),
		Time:   time.Now(),
		Action: core.ActionForward,
		Method: r.Method,
		Path:   "/" + path,
	}
	defer func() {
		if err := f.auditor.Log(entry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry")
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		entry.Error = err.Error()
		presenter.Error(w, r, "reading request body: "+err.Error(), http.StatusInternalServerError)
		return
	}

	headers := make(http.Header, len(r.Header))
	for k, vs := range r.Header {
		headers[k] = append([]string(nil), vs...)
	}
	headers.Del("Host")
	for _, h := range hopHeaders {
		headers.Del(h)
	}

	if authz := r.Header.Get("Authorization"); authz != "" {
		raw, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok {
			entry.Error = "authorization header is not a bearer token"
			presenter.Error(w, r, "authorization header is not a bearer token", http.StatusUnauthorized)
			return
		}

		minted, claims, err := f.Translate(ctx, raw)
		if err != nil {
			entry.Error = err.Error()
			logger.Warn().Err(err).Msg("token translation failed")
			presenter.Error(w, r, err.Error(), StatusFor(err))
			return
		}
		entry.Subject = claims.Subject
		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("sub", claims.Subject)
		})

		if err := f.provisioner.EnsureRole(ctx, claims.Subject); err != nil {
			entry.Error = err.Error()
			logger.Error().Err(err).Msg("role provisioning failed")
			presenter.Error(w, r, err.Error(), StatusFor(err))
			return
		}

		headers.Set("Authorization", "Bearer "+minted)
		headers.Set("X-User-Role", "authenticated")
		headers.Set("X-JWT-Aud", f.audience)
		headers.Set("Prefer", "return=representation")

		if bodyBearing(r.Method) {
			if rewritten, ok := injectSubject(body, claims.Subject); ok {
				body = rewritten
			}
		}
	}

	target := f.upstream + "/" + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		entry.Error = err.Error()
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	req.Header = headers
	req.Header.Del("Content-Length")
	req.ContentLength = int64(len(body))

	resp, err := f.client.Do(req)
	if err != nil {
		entry.Error = fmt.Sprintf("upstream request failed: %v", err)
		logger.Error().Err(err).Str("target", target).Msg("upstream request failed")
		presenter.Error(w, r, "upstream request failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	entry.UpstreamStatus = resp.StatusCode
	entry.Success = true

	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Error().Err(err).Msg("relaying upstream response failed")
	}
}

// bodyBearing reports whether the method is a write that carries a
// request body we may need to rewrite.
func bodyBearing(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// injectSubject adds the verified subject under the user_id field if
// the body is a JSON object. Non-object bodies (arrays, scalars, empty,
// non-JSON) are forwarded untouched.
func injectSubject(body []byte, subject string) ([]byte, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, false
	}
	obj[userIDField] = subject
	rewritten, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	return rewritten, true
}
