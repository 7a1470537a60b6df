package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report record counts and stage collaborator readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Records")
			fmt.Fprintf(out, "  total %d: %d completed, %d failed, %d in progress, %d pending\n",
				health.Total, health.Completed, health.Failed, health.InProgress, health.Pending)

			fmt.Fprintln(out, "Stages")
			rt, err := newRuntime(cmd.Context(), ctx)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("pipeline", statusError, err.Error(), colorize))
				return nil
			}
			defer rt.Close()

			for _, stageHealth := range rt.orchestrator.Health(cmd.Context()) {
				kind := statusOK
				if !stageHealth.Ready {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(stageHealth.Name, kind, stageHealth.Detail, colorize))
			}
			return nil
		},
	}
}
