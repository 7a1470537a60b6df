package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plenary/internal/records"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(all)
			}
			if len(all) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}

			rows := make([][]string, 0, len(all))
			for _, record := range all {
				rows = append(rows, []string{
					shortID(record.SessionID),
					truncate(record.Title, 44),
					statusLabel(record),
					formatPercent(record.ProgressPercent),
					record.ProgressStage,
					fmt.Sprintf("%d", record.Attempt),
					formatLocalTime(record.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Title", "Status", "Progress", "Stage", "Attempt", "Updated"},
				rows, 4, 6))
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (comma separated: pending, in_progress, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit records as JSON")
	return cmd
}

func parseStatusFilter(filter string) ([]records.Status, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	var statuses []records.Status
	for _, part := range strings.Split(filter, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		status, ok := records.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
