package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/localparts/tokenbridge/internal/api"
	"github.com/localparts/tokenbridge/internal/audit"
	"github.com/localparts/tokenbridge/internal/jwks"
	"github.com/localparts/tokenbridge/internal/provision"
	"github.com/localparts/tokenbridge/internal/proxy"
	"github.com/localparts/tokenbridge/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tokenbridge proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
		if addr == "" {
			addr = cfg.Listen
		}

		auditor, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Error().Err(err).Msg("closing auditor")
			}
		}()

		log.Info().Str("jwks_url", cfg.JWKSEndpoint()).Msg("Initializing token pipeline...")
		keys := jwks.NewCache(cfg.JWKSEndpoint(), cfg.Identity.KeyTTL, nil)
		verifier := token.NewVerifier(keys, cfg.Token.Audience)
		minter := token.NewMinter(
			[]byte(cfg.Token.Secret), cfg.Token.Audience, cfg.Token.TTL, cfg.Token.ServiceRole)
		provisioner := provision.New(
			cfg.Upstream.URL, cfg.Provision.RPC, minter, cfg.Provision.CacheTTL, nil)
		forwarder := proxy.NewForwarder(
			cfg.Upstream.URL, verifier, minter, provisioner, auditor,
			cfg.Token.Audience, api.ReservedPaths(), nil)

		srv := api.NewServer(cfg, forwarder, minter, auditor, nil)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().
				Str("upstream", cfg.Upstream.URL).
				Msgf("Starting proxy on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
}
