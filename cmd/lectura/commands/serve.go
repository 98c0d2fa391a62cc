package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/logging"
	"github.com/studyware/lectura/internal/server"
)

// NewServeCmd constructs the `lectura serve` command, which starts the HTTP
// server exposing the question-answering and corpus management API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lectura HTTP server",
		Long: `Start the lectura HTTP server on localhost.

The server exposes POST /api/ask for question answering, token-protected
corpus mutation routes (/api/ingest, /api/retitle, /api/wipe), read-only
/api/stats, and the usual health, readiness, and Prometheus metrics
endpoints.

Examples:
  lectura serve
  lectura serve --port 9090
  MODEL_PROVIDER=openai lectura serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = c.Close() }()

			asm, err := c.buildAnswerer()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise answerer: %w", err)
			}

			embName := os.Getenv("EMBEDDING_PROVIDER")
			if embName == "" {
				embName = "embedder"
			}

			if host == "" {
				host = os.Getenv("SERVER_HOST")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 8080)
			}

			srv, err := server.New(asm, c.svc, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewStorePinger(c.store),
					server.NewEmbedderPinger(c.emb, embName),
				},
				AdminToken:       os.Getenv("LECTURA_ADMIN_TOKEN"),
				IndexInfo:        c.cache.Info,
				IndexRebuildHook: c.cache.SetRebuildHook,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: 8080)")

	return cmd
}
