package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"plenary/internal/batch"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var urlFile string

	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Process many session URLs under the configured worker limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if strings.TrimSpace(urlFile) != "" {
				fromFile, err := batch.ReadURLFile(urlFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return errors.New("no URLs given; pass them as arguments or with --file")
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newRuntime(signalCtx, ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			runner, err := batch.New(rt.orchestrator, rt.logger, rt.cfg)
			if err != nil {
				return err
			}

			summary, runErr := runner.Run(signalCtx, urls)
			if summary != nil {
				rows := make([][]string, 0, len(summary.Results))
				for _, result := range summary.Results {
					outcome := string(result.Status)
					if result.Err != nil {
						outcome = result.Err.Error()
					} else if result.Cause != "" {
						outcome = fmt.Sprintf("%s (%s)", result.Status, result.Cause)
					}
					rows = append(rows, []string{
						shortID(result.SessionID),
						truncate(result.URL, 60),
						truncate(outcome, 48),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Session", "URL", "Outcome"}, rows))
				fmt.Fprintf(out, "submitted %d, succeeded %d, failed %d\n",
					summary.Submitted, summary.Succeeded, summary.Failed)
			}
			if runErr != nil {
				return runErr
			}
			if summary != nil && summary.Failed > 0 {
				return fmt.Errorf("%d of %d sessions did not complete", summary.Failed, summary.Submitted)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&urlFile, "file", "f", "", "File with one session URL per line")
	return cmd
}
