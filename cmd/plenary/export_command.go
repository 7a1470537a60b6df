package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plenary/internal/report"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the session catalog to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(outPath)
			if target == "" {
				target = "plenary-sessions.xlsx"
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := report.Export(cmd.Context(), store, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote session catalog to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination workbook path")
	return cmd
}
