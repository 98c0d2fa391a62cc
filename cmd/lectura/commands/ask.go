package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studyware/lectura/internal/answer"
	"github.com/studyware/lectura/internal/logging"
)

// NewAskCmd constructs the `lectura ask` command, which answers a single
// question from the ingested course materials and prints the reply to stdout.
func NewAskCmd() *cobra.Command {
	var minScore float64
	var topK int
	var lenient bool
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested course materials",
		Long: `Ask a natural language question. The answer is grounded strictly in the
ingested lectures, if nothing in the corpus matches, lectura says so rather
than answering from general knowledge.

Examples:
  lectura ask "what is a bijective function?"
  lectura ask --top-k 5 "how does quicksort partition?"
  lectura ask --lenient "what did the lecturer say about caching?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, err := buildCore(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = c.Close() }()

			asm, err := c.buildAnswerer()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise answerer: %w", err)
			}

			req := answer.Request{
				Question: strings.Join(args, " "),
			}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}
			if lenient {
				strict := false
				req.Strict = &strict
			}

			resp, err := asm.Answer(ctx, req)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(resp.Answer)

			if showSources && len(resp.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, title := range resp.Sources {
					fmt.Printf("  - %s\n", title)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Similarity threshold override (default from RETRIEVAL_MIN_SCORE)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of excerpts to use (default from RETRIEVAL_TOP_K)")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Answer from the best available excerpts even below the threshold")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", true, "Print the cited lecture titles after the answer")

	return cmd
}
