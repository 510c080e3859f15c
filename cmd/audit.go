package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/localparts/tokenbridge/pkg/client"
)

var (
	auditServer string
	auditLimit  uint
)

// auditCmd lists recent translation and forwarding events from a
// running proxy. Requires the memory auditor and debug endpoints.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit entries from a running proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient(auditServer)
		if err != nil {
			return err
		}

		entries, _, err := c.ListAudits(cmd.Context(), client.ListAuditsOpts{Limit: auditLimit})
		if err != nil {
			return fmt.Errorf("listing audit entries: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println(faint("No audit entries."))
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Time", "Action", "Subject", "Method", "Path", "Status", "Error"})
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			t.AppendRow(table.Row{
				e.Time.Format("15:04:05"),
				e.Action,
				truncate(e.Subject, 24),
				e.Method,
				truncate(e.Path, 32),
				status,
				truncate(e.Error, 40),
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditServer, "server", "http://localhost:8000", "proxy server URL")
	auditCmd.Flags().UintVar(&auditLimit, "limit", 20, "maximum number of entries to list")
}
