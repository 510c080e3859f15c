package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// configShowCmd prints the effective configuration after file and
// environment overrides. The shared secret is never printed.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		secret := faint("(not set)")
		if cfg.Token.Secret != "" {
			secret = "<redacted>"
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Setting", "Value"})
		t.AppendRows([]table.Row{
			{"listen", cfg.Listen},
			{"upstream.url", cfg.Upstream.URL},
			{"identity.url", cfg.Identity.URL},
			{"identity.application", cfg.Identity.Application},
			{"identity.key_ttl", cfg.Identity.KeyTTL},
			{"jwks endpoint", cfg.JWKSEndpoint()},
			{"token.secret", secret},
			{"token.audience", cfg.Token.Audience},
			{"token.ttl", cfg.Token.TTL},
			{"token.service_role", cfg.Token.ServiceRole},
			{"provision.rpc", cfg.Provision.RPC},
			{"provision.cache_ttl", cfg.Provision.CacheTTL},
			{"audit.enabled", cfg.Audit.Enabled},
			{"audit.type", cfg.Audit.Type},
			{"debug.enabled", cfg.Debug.Enabled},
		})
		t.Render()

		if err := cfg.Validate(); err != nil {
			fmt.Println(faint("Warning: " + err.Error()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
