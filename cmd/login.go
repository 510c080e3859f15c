package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localparts/tokenbridge/internal/cliconfig"
	"github.com/localparts/tokenbridge/internal/token"
)

var (
	loginServer string
	loginToken  string
)

// loginCmd stores a service token for a proxy server so that status and
// audit commands can reach its auth-gated debug endpoints. Without
// --token, a fresh service token is minted from the configured secret.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a service credential for a proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginServer == "" {
			return errors.New("--server is required")
		}

		signed := loginToken
		if signed == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			minter := token.NewMinter(
				[]byte(cfg.Token.Secret), cfg.Token.Audience, cfg.Token.TTL, cfg.Token.ServiceRole)
			if signed, err = minter.MintService(); err != nil {
				return err
			}
		}

		cliCfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			cliCfg = &cliconfig.CLIConfig{}
		}
		if err := cliCfg.SetCredential(loginServer, &cliconfig.Credential{Token: signed}); err != nil {
			return err
		}
		if err := cliconfig.Save(cliCfg); err != nil {
			return err
		}

		fmt.Printf("Stored credential for %s\n", bold(loginServer))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginServer, "server", "", "proxy server URL")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "credential to store (minted locally when omitted)")
}
