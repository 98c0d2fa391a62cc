package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/extract"
	"github.com/studyware/lectura/internal/logging"
)

// NewIngestCmd constructs the `lectura ingest` command, which loads one or
// more lecture files into the corpus as a single batch.
func NewIngestCmd() *cobra.Command {
	var docID string
	var title string
	var rawText string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest lecture files (txt, md, pdf) into the corpus",
		Long: `Read lecture files, extract their text, and store them as chunked
documents. All files given in one invocation are ingested as a single batch
with one corpus version bump.

By default the document id is the file name without its extension and the
title is the file name. Use --id and --title to override when ingesting a
single file, or --text with --id to ingest inline text without a file.

Examples:
  lectura ingest lecture-01.pdf
  lectura ingest notes/*.md
  lectura ingest --id algo-07 --title "Lecture 7: Graphs" graphs.txt
  lectura ingest --id note-1 --text "the master theorem states..."`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rawText != "" {
				if len(args) > 0 {
					return fmt.Errorf("ingest: --text cannot be combined with files")
				}
				if docID == "" {
					return fmt.Errorf("ingest: --text requires --id")
				}
			} else if len(args) == 0 {
				return fmt.Errorf("ingest: provide at least one file or --text")
			}
			if (docID != "" || title != "") && len(args) > 1 {
				return fmt.Errorf("ingest: --id and --title require exactly one file")
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = c.Close() }()

			docs := make([]corpus.IngestDoc, 0, len(args)+1)
			if rawText != "" {
				docTitle := title
				if docTitle == "" {
					docTitle = docID
				}
				docs = append(docs, corpus.IngestDoc{ID: docID, Title: docTitle, Text: rawText})
			}
			for _, path := range args {
				text, err := extract.FromFile(path)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				base := filepath.Base(path)
				id := strings.TrimSuffix(base, filepath.Ext(base))
				docTitle := base
				if docID != "" {
					id = docID
				}
				if title != "" {
					docTitle = title
				}

				docs = append(docs, corpus.IngestDoc{ID: id, Title: docTitle, Text: text})
				log.Info("prepared document", "id", id, "title", docTitle, "chars", len(text))
			}

			res, err := c.svc.Ingest(ctx, docs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			version, err := c.svc.Version(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			fmt.Printf("Ingested %d document(s), %d chunk(s). Corpus is now at version %d.\n",
				res.Documents, res.Chunks, version)
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document id override (single file only)")
	cmd.Flags().StringVar(&title, "title", "", "Document title override (single file only)")
	cmd.Flags().StringVar(&rawText, "text", "", "Ingest this text directly instead of a file (requires --id)")

	return cmd
}
