package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/logging"
)

// NewStatsCmd constructs the `lectura stats` command, which prints a summary
// of the ingested corpus.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show a summary of the ingested corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer func() { _ = c.Close() }()

			stats, err := c.svc.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			version, err := c.svc.Version(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Lectures: %d\n", stats.LectureCount)
			fmt.Printf("Chunks:   %d\n", stats.ChunkCount)
			fmt.Printf("Version:  %d\n", version)
			if len(stats.SampleTitles) > 0 {
				fmt.Println("Titles:")
				for _, title := range stats.SampleTitles {
					fmt.Printf("  - %s\n", title)
				}
			}
			return nil
		},
	}
}
