package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"plenary/internal/records"
	"plenary/internal/vector"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id|url> [more...]",
		Short: "Delete processing records and their stored vectors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var vectors *vector.Store
			if cfg.Vector.Enabled {
				vectors, err = vector.Open(cmd.Context(), cfg.Vector, cfg.OpenAI.EmbeddingDimensions)
				if err != nil {
					return fmt.Errorf("open vector index: %w", err)
				}
				defer vectors.Close()
			}

			out := cmd.OutOrStdout()
			for _, arg := range args {
				sessionID, err := resolveSessionArg(arg)
				if err != nil {
					return err
				}
				if vectors != nil {
					if err := vectors.DeleteSession(cmd.Context(), sessionID); err != nil {
						return fmt.Errorf("delete vectors for %s: %w", shortID(sessionID), err)
					}
				}
				if err := store.Remove(cmd.Context(), sessionID); err != nil {
					if errors.Is(err, records.ErrNotFound) {
						fmt.Fprintf(out, "%s: not found\n", arg)
						continue
					}
					return err
				}
				fmt.Fprintf(out, "removed %s\n", shortID(sessionID))
			}
			return nil
		},
	}
}
