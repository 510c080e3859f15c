package cmd

import (
	"errors"

	"github.com/fatih/color"

	"github.com/localparts/tokenbridge/internal/cliconfig"
	"github.com/localparts/tokenbridge/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

// newAPIClient builds a client for the given server, attaching a stored
// credential when one exists. A missing CLI config is not an error; the
// server may not require auth at all.
func newAPIClient(server string) (*client.Client, error) {
	var opts []client.Option
	if cliCfg, err := cliconfig.Load(); err == nil {
		if cred, err := cliCfg.GetCredential(server); err == nil {
			opts = append(opts, client.WithAuthToken(cred.Token))
		} else if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	}
	return client.New(server, opts...)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
