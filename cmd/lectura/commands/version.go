package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/version"
)

// NewVersionCmd constructs the `lectura version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lectura version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lectura %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}
