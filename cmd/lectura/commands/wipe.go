package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/logging"
)

// NewWipeCmd constructs the `lectura wipe` command, which deletes every
// document and chunk from the corpus.
func NewWipeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all ingested documents and chunks",
		Long: `Remove every document and chunk from the corpus. The version counter is
preserved and bumped, so running servers drop their cached index on the next
request. This cannot be undone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Print("This deletes the entire corpus. Continue? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				line, _ := reader.ReadString('\n')
				if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("wipe: %w", err)
			}
			defer func() { _ = c.Close() }()

			deleted, err := c.svc.Wipe(ctx)
			if err != nil {
				return fmt.Errorf("wipe: %w", err)
			}

			fmt.Printf("Deleted %d record(s).\n", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}
