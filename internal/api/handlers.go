package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/localparts/tokenbridge/internal/api/presenter"
	"github.com/localparts/tokenbridge/internal/audit"
	"github.com/localparts/tokenbridge/internal/core"
	"github.com/localparts/tokenbridge/internal/proxy"
)

// handleHealth responds with a simple status to indicate the proxy is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string]string{"status": "healthy"}, http.StatusOK)
}

// handleDebugSettings returns the effective configuration. The shared
// secret is redacted; leaking it would let anyone mint downstream tokens.
func (s *Server) handleDebugSettings(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string]any{
		"upstream_url":  s.cfg.Upstream.URL,
		"jwks_url":      s.cfg.JWKSEndpoint(),
		"audience":      s.cfg.Token.Audience,
		"token_ttl":     s.cfg.Token.TTL.String(),
		"service_role":  s.cfg.Token.ServiceRole,
		"key_ttl":       s.cfg.Identity.KeyTTL.String(),
		"provision_rpc": s.cfg.Provision.RPC,
		"jwt_secret":    "<redacted>",
	}, http.StatusOK)
}

// handleDebugJWT runs the token translation for the presented bearer
// token and returns both tokens plus the decoded downstream claims.
func (s *Server) handleDebugJWT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		presenter.Error(w, r, "no valid authorization header", http.StatusUnauthorized)
		return
	}

	entry := core.AuditEntry{
		ID:     presenter.CorrelationID(r),
		Time:   time.Now(),
		Action: core.ActionTranslate,
		Method: r.Method,
		Path:   DebugJWTRoute,
	}
	defer func() {
		if err := s.auditor.Log(entry); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
		}
	}()

	minted, claims, err := s.forwarder.Translate(ctx, raw)
	if err != nil {
		entry.Error = err.Error()
		presenter.Error(w, r, err.Error(), proxy.StatusFor(err))
		return
	}
	entry.Subject = claims.Subject
	entry.Success = true

	decoded, err := s.minter.Decode(minted)
	if err != nil {
		entry.Error = err.Error()
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, map[string]any{
		"original_fingerprint": audit.Fingerprint(raw),
		"transformed_token":    minted,
		"decoded_token":        decoded,
		"subject":              claims.Subject,
	}, http.StatusOK)
}

// handleDebugAudit lists recent audit entries. Only available when the
// in-memory auditor is configured.
func (s *Server) handleDebugAudit(w http.ResponseWriter, r *http.Request) {
	mem, ok := s.auditor.(*audit.InMemoryAuditor)
	if !ok {
		presenter.Error(w, r, "audit introspection requires the memory auditor", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			presenter.Error(w, r, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := mem.GetRecent(limit)
	if err != nil {
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, map[string]any{"entries": entries}, http.StatusOK)
}

// handleTestConnection probes the upstream data API root.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		strings.TrimSuffix(s.cfg.Upstream.URL, "/")+"/", nil)
	if err != nil {
		presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		presenter.JSON(w, r, map[string]string{
			"status":  "error",
			"message": err.Error(),
		}, http.StatusOK)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	presenter.JSON(w, r, map[string]any{
		"status":          "success",
		"upstream_status": resp.StatusCode,
	}, http.StatusOK)
}
