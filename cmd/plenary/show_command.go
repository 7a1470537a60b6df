package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plenary/internal/records"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id|url>",
		Short: "Show one processing record in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := resolveSessionArg(args[0])
			if err != nil {
				return err
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(record)
			}

			fmt.Fprintf(out, "Session:   %s\n", record.SessionID)
			fmt.Fprintf(out, "Source:    %s\n", record.SourceURL)
			fmt.Fprintf(out, "Title:     %s\n", record.Title)
			fmt.Fprintf(out, "Status:    %s\n", statusLabel(record))
			fmt.Fprintf(out, "Progress:  %s %s (%s)\n",
				formatPercent(record.ProgressPercent), record.ProgressStage, record.ProgressMessage)
			fmt.Fprintf(out, "Attempt:   %d\n", record.Attempt)
			fmt.Fprintf(out, "Language:  %s\n", record.Language)
			fmt.Fprintf(out, "Segments:  %d (%d words)\n", record.SegmentCount, record.WordCount)
			if record.EmbeddingRef != "" {
				fmt.Fprintf(out, "Vectors:   %s\n", record.EmbeddingRef)
			}
			fmt.Fprintf(out, "Created:   %s\n", formatLocalTime(record.CreatedAt))
			fmt.Fprintf(out, "Updated:   %s\n", formatLocalTime(record.UpdatedAt))
			if record.CompletedAt != nil {
				fmt.Fprintf(out, "Completed: %s\n", formatLocalTime(*record.CompletedAt))
			}
			if record.Status == records.StatusFailed {
				fmt.Fprintf(out, "Failure:   %s\n", record.ErrorMessage)
			}
			if summary := strings.TrimSpace(record.Summary); summary != "" {
				fmt.Fprintf(out, "\n%s\n", summary)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the record as JSON")
	return cmd
}
