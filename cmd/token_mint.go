package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localparts/tokenbridge/internal/token"
)

var (
	mintSubject string
	mintEmail   string
	mintService bool
)

// tokenMintCmd mints a downstream token locally using the configured
// shared secret. Useful for poking the data API directly while
// debugging row-level-security policies.
var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a downstream token with the configured shared secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		minter := token.NewMinter(
			[]byte(cfg.Token.Secret), cfg.Token.Audience, cfg.Token.TTL, cfg.Token.ServiceRole)

		var signed string
		switch {
		case mintService:
			signed, err = minter.MintService()
		case mintSubject != "":
			signed, err = minter.Mint(&token.Claims{Subject: mintSubject, Email: mintEmail})
		default:
			return errors.New("either --subject or --service is required")
		}
		if err != nil {
			return err
		}

		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenMintCmd)

	tokenMintCmd.Flags().StringVar(&mintSubject, "subject", "", "subject to mint a user token for")
	tokenMintCmd.Flags().StringVar(&mintEmail, "email", "", "optional email claim")
	tokenMintCmd.Flags().BoolVar(&mintService, "service", false, "mint the privileged service token instead")
}
