package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plenary/internal/records"
	"plenary/internal/services"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <url> [url...]",
		Short: "Process session URLs through the full pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newRuntime(signalCtx, ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			failed := 0
			for _, rawURL := range args {
				runCtx := services.WithRequestID(signalCtx, uuid.NewString())
				record, err := rt.orchestrator.Process(runCtx, rawURL)
				switch {
				case err == nil && record.Status == records.StatusFailed:
					fmt.Fprintf(out, "%s  failed (%s)  %s\n", shortID(record.SessionID),
						record.ErrorCause, truncate(record.ErrorMessage, 60))
					failed++
				case err == nil:
					fmt.Fprintf(out, "%s  %s  %s\n", shortID(record.SessionID),
						record.Status, truncate(record.Title, 60))
				case errors.Is(err, services.ErrConflict):
					fmt.Fprintf(out, "skipped %s: %v\n", rawURL, err)
					failed++
				default:
					fmt.Fprintf(out, "failed %s: %v\n", rawURL, err)
					failed++
				}
				if signalCtx.Err() != nil {
					break
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions did not complete", failed, len(args))
			}
			return nil
		},
	}
}
