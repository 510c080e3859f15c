package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/localparts/tokenbridge/internal/audit"
)

// tokenDecodeCmd decodes a token WITHOUT verifying its signature. It is
// a debugging aid for inspecting claims, not a verification tool.
var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Decode a token and print its claims (signature is NOT verified)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := args[0]

		claims := jwt.MapClaims{}
		token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}

		fmt.Printf("%s: %s\n", bold("Algorithm"), token.Method.Alg())
		if kid, ok := token.Header["kid"].(string); ok {
			fmt.Printf("%s: %s\n", bold("Key ID"), kid)
		}
		fmt.Printf("%s: %s\n", bold("Fingerprint"), audit.Fingerprint(raw))

		names := make([]string, 0, len(claims))
		for name := range claims {
			names = append(names, name)
		}
		sort.Strings(names)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Claim", "Value"})
		for _, name := range names {
			t.AppendRow(table.Row{name, truncate(fmt.Sprintf("%v", claims[name]), 60)})
		}
		t.Render()

		fmt.Println(faint("Signature was NOT verified."))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenDecodeCmd)
}
