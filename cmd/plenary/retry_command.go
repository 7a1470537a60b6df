package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"plenary/internal/records"
	"plenary/internal/services"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var stuckAfter time.Duration

	cmd := &cobra.Command{
		Use:   "retry [session-id|url...]",
		Short: "Re-run failed sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && stuckAfter <= 0 {
				return errors.New("pass sessions to retry, or --stuck to reclaim abandoned runs")
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newRuntime(signalCtx, ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if stuckAfter > 0 {
				reclaimed, err := rt.store.ResetStuck(signalCtx, stuckAfter)
				if err != nil {
					return err
				}
				for _, id := range reclaimed {
					fmt.Fprintf(out, "reclaimed %s (in progress longer than %s)\n", shortID(id), stuckAfter)
				}
				if len(reclaimed) == 0 {
					fmt.Fprintln(out, "no stuck runs found")
				}
			}

			failed := 0
			for _, arg := range args {
				sessionID, err := resolveSessionArg(arg)
				if err != nil {
					return err
				}
				record, err := rt.store.Get(signalCtx, sessionID)
				if err != nil {
					if errors.Is(err, records.ErrNotFound) {
						fmt.Fprintf(out, "%s: not found\n", arg)
						failed++
						continue
					}
					return err
				}
				if record.Status == records.StatusCompleted {
					fmt.Fprintf(out, "%s: already completed\n", shortID(sessionID))
					continue
				}
				if record.Status == records.StatusInProgress {
					fmt.Fprintf(out, "%s: run in progress; use --stuck if it is abandoned\n", shortID(sessionID))
					failed++
					continue
				}

				runCtx := services.WithRequestID(signalCtx, uuid.NewString())
				retried, err := rt.orchestrator.Process(runCtx, record.SourceURL)
				if err != nil {
					fmt.Fprintf(out, "%s: retry failed: %v\n", shortID(sessionID), err)
					failed++
					continue
				}
				if retried.Status == records.StatusFailed {
					fmt.Fprintf(out, "%s: failed again (%s)\n", shortID(sessionID), retried.ErrorCause)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: %s (attempt %d)\n", shortID(sessionID), retried.Status, retried.Attempt)
			}
			if failed > 0 {
				return fmt.Errorf("%d sessions did not complete", failed)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&stuckAfter, "stuck", 0, "Also reset in-progress runs older than this duration (e.g. 2h)")
	return cmd
}
