package api

import (
	"net/http"

	"github.com/localparts/tokenbridge/internal/api/middleware"
	"github.com/localparts/tokenbridge/internal/api/presenter"
	"github.com/localparts/tokenbridge/internal/audit"
	"github.com/localparts/tokenbridge/internal/config"
	"github.com/localparts/tokenbridge/internal/core"
	"github.com/localparts/tokenbridge/internal/proxy"
	"github.com/localparts/tokenbridge/internal/token"
)

type Server struct {
	cfg       *config.Config
	forwarder *proxy.Forwarder
	minter    *token.Minter
	auditor   core.Auditor
	client    *http.Client
}

// NewServer wires the operational endpoints around the forwarding
// pipeline. The client is used for the upstream reachability probe;
// nil falls back to http.DefaultClient.
func NewServer(cfg *config.Config, forwarder *proxy.Forwarder, minter *token.Minter, auditor core.Auditor, client *http.Client) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Server{
		cfg:       cfg,
		forwarder: forwarder,
		minter:    minter,
		auditor:   auditor,
		client:    client,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)

	if s.cfg.Debug.Enabled {
		debugMux := http.NewServeMux()
		debugMux.HandleFunc("GET "+DebugSettingsRoute, s.handleDebugSettings)
		debugMux.HandleFunc("GET "+DebugJWTRoute, s.handleDebugJWT)
		debugMux.HandleFunc("GET "+DebugAuditRoute, s.handleDebugAudit)
		debugMux.HandleFunc("GET "+TestConnectionRoute, s.handleTestConnection)
		// unknown debug paths answer the same JSON shape as every other error
		debugMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			presenter.Error(w, r, "not found", http.StatusNotFound)
		})

		var debugHandler http.Handler = debugMux
		if s.cfg.Debug.RequireAuth {
			debugHandler = middleware.ServiceAuth(
				[]byte(s.cfg.Token.Secret), s.cfg.Token.ServiceRole)(debugMux)
		}
		mux.Handle("GET /debug/", debugHandler)
		mux.Handle("GET "+TestConnectionRoute, debugHandler)
	}

	// the write/read/delete exercise of the reference deployment is not
	// implemented, but the path stays reserved so it cannot be proxied
	mux.HandleFunc("POST "+RunTestRoute, func(w http.ResponseWriter, r *http.Request) {
		presenter.Error(w, r, "not implemented", http.StatusNotImplemented)
	})

	// everything else is proxied
	mux.Handle("/", s.forwarder)

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
