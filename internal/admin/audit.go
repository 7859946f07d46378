package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const defaultAuditLimit = 50

func (c *cli) auditCmd() *cobra.Command {
	var (
		email string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail of an account, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			svc, closeFn, err := c.adminService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := svc.ListAudit(cmd.Context(), email, limit)
			if err != nil {
				return fmt.Errorf("audit for %s: %w", email, err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries")
				return nil
			}
			renderAudit(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().IntVar(&limit, "limit", defaultAuditLimit, "maximum number of entries")
	cmd.MarkFlagRequired("email")
	return cmd
}

func renderAudit(w io.Writer, entries []*models.AuditLog) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Action", "Status", "IP", "User Agent", "Metadata"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetRowLine(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, e := range entries {
		table.Append([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			statusCell(e.Status),
			e.IPAddress,
			e.UserAgent,
			metadataCell(e.Metadata),
		})
	}
	table.Render()
}

func statusCell(s models.AuditStatus) string {
	if s == models.AuditSuccess {
		return color.GreenString(string(s))
	}
	return color.RedString(string(s))
}

func metadataCell(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprint(m)
	}
	return string(b)
}
