package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusServer string

// statusCmd reports the health of a running proxy and, when its debug
// endpoints are enabled, the upstream reachability and the effective
// settings.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health and settings of a running proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient(statusServer)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		health, _, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		fmt.Printf("%s: %s\n", bold("Health"), health.Status)

		conn, _, err := c.TestConnection(ctx)
		if err != nil {
			fmt.Printf("%s: %s\n", bold("Upstream"), faint("unavailable ("+err.Error()+")"))
		} else if conn.Status == "success" {
			fmt.Printf("%s: reachable (status %d)\n", bold("Upstream"), conn.UpstreamStatus)
		} else {
			fmt.Printf("%s: %s\n", bold("Upstream"), conn.Message)
		}

		settings, _, err := c.Settings(ctx)
		if err != nil {
			fmt.Printf("%s: %s\n", bold("Settings"), faint("unavailable ("+err.Error()+")"))
			return nil
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println(bold("Settings") + ":")
		for _, k := range keys {
			fmt.Printf("  %s = %v\n", k, settings[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8000", "proxy server URL")
}
