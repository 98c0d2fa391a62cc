package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/logging"
)

// NewRetitleCmd constructs the `lectura retitle` command, which renames a
// stored document and rewrites the denormalized title on its chunks.
func NewRetitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retitle [id] [new title]",
		Short: "Rename an ingested document",
		Long: `Change the title of an ingested document. The new title is applied to the
document record and to every chunk, so future answers cite the new name.

Example:
  lectura retitle lecture-01 "Lecture 1: Introduction to Sets"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("retitle: %w", err)
			}
			defer func() { _ = c.Close() }()

			if err := c.svc.Retitle(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("retitle: %w", err)
			}

			fmt.Printf("Renamed %q to %q.\n", args[0], args[1])
			return nil
		},
	}
}
