// Package commands defines all Cobra CLI commands for the lectura binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/audit"
	"github.com/studyware/lectura/internal/config"
	"github.com/studyware/lectura/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lectura",
		Short: "Retrieval-augmented Q&A over your course materials",
		Long: `lectura is a local-first assistant that answers questions strictly from
ingested course materials.

Lectures are chunked, embedded, and stored in a local SQLite corpus. Questions
are answered by cosine-similarity retrieval over the corpus followed by a
grounded completion. The assistant never answers from general knowledge.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.lectura/config.yaml).
See 'lectura --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional and never overrides the real environment.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.lectura/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewRetitleCmd(),
		NewWipeCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
