package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/embedder"
	"github.com/studyware/lectura/internal/logging"
	"github.com/studyware/lectura/internal/retrieval"
)

// Canned replies for the two retrieval misses. Both are delivered with a
// success status; the caller distinguishes them by text and by the Matched
// flag, never by an error code.
const (
	// ReplyNoCorpus is returned when nothing has been ingested at all:
	// a deployment/configuration problem, not a bad question.
	ReplyNoCorpus = "No course materials have been loaded yet. Ask an administrator to ingest lectures first."

	// ReplyNoMatch is returned in strict mode when the corpus has content
	// but nothing scored above the similarity threshold.
	ReplyNoMatch = "I could not find this in the course materials."
)

// systemInstruction frames the completion call: answer only from the
// numbered excerpts, never from general knowledge.
const systemInstruction = "You are a course assistant. Answer the student's question using ONLY the " +
	"numbered lecture excerpts provided. If the excerpts do not contain the answer, say so. " +
	"Cite excerpt numbers like [1] where relevant. Be concise."

// Request is one question with optional per-query policy overrides.
type Request struct {
	// Question is the student's natural-language question.
	Question string
	// MinScore overrides the similarity threshold. Nil means the retrieval
	// default; zero is a real threshold accepting any non-negative score.
	MinScore *float64
	// TopK overrides the selection cap. Nil means the retrieval default;
	// zero or negative selects nothing.
	TopK *int
	// Strict selects the no-match policy. Nil means the assembler default.
	Strict *bool
}

// Source is one cited chunk in a response.
type Source struct {
	// Title is the owning document's title.
	Title string `json:"title"`
	// Text is the chunk text sent to the completion gateway.
	Text string `json:"text"`
	// Score is the cosine similarity against the question.
	Score float64 `json:"score"`
}

// Response is the assembled answer.
type Response struct {
	// Answer is the generated (or canned) reply text.
	Answer string `json:"answer"`
	// Matched is false for both retrieval misses (no corpus, no match).
	Matched bool `json:"matched"`
	// Sources is the ordered set of distinct document titles cited.
	Sources []string `json:"sources"`
	// Chunks are the selected excerpts in similarity order.
	Chunks []Source `json:"chunks"`
}

// Assembler answers questions by embedding them, retrieving matching chunks,
// and delegating text generation to the completion gateway.
type Assembler struct {
	// embedder converts the question into a query vector.
	embedder embedder.Embedder
	// engine scores and selects chunks.
	engine *retrieval.Engine
	// completer generates the final reply text.
	completer Completer
	// strict is the default no-match policy when the request leaves it unset.
	strict bool
}

// NewAssembler constructs an Assembler. strict sets the default retrieval
// policy for requests that don't override it.
func NewAssembler(emb embedder.Embedder, engine *retrieval.Engine, completer Completer, strict bool) (*Assembler, error) {
	if emb == nil {
		return nil, fmt.Errorf("answer: embedder must not be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("answer: engine must not be nil")
	}
	if completer == nil {
		return nil, fmt.Errorf("answer: completer must not be nil")
	}
	return &Assembler{embedder: emb, engine: engine, completer: completer, strict: strict}, nil
}

// Answer resolves one question end to end. Retrieval misses (empty corpus,
// below threshold in strict mode) produce canned replies with Matched=false
// and a nil error; gateway and store failures are returned as errors.
func (a *Assembler) Answer(ctx context.Context, req Request) (Response, error) {
	log := logging.FromContext(ctx)

	vecs, err := a.embedder.Embed(ctx, []string{req.Question})
	if err != nil {
		return Response{}, fmt.Errorf("answer: embed question: %w: %w", corpus.ErrUpstreamFailure, err)
	}
	if len(vecs) != 1 {
		return Response{}, fmt.Errorf("answer: embed question: %w: expected 1 vector, got %d", corpus.ErrUpstreamFailure, len(vecs))
	}

	strict := a.strict
	if req.Strict != nil {
		strict = *req.Strict
	}
	minScore := retrieval.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	topK := retrieval.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	res, err := a.engine.Search(ctx, vecs[0], retrieval.Options{
		MinScore: minScore,
		TopK:     topK,
		Strict:   strict,
	})
	switch {
	case errors.Is(err, corpus.ErrNoCorpusLoaded):
		return Response{Answer: ReplyNoCorpus, Sources: []string{}, Chunks: []Source{}}, nil
	case errors.Is(err, corpus.ErrBelowThreshold):
		return Response{Answer: ReplyNoMatch, Sources: []string{}, Chunks: []Source{}}, nil
	case err != nil:
		return Response{}, fmt.Errorf("answer: %w", err)
	}

	prompt := BuildPrompt(req.Question, res)

	text, err := a.completer.Complete(ctx, systemInstruction, prompt)
	if err != nil {
		return Response{}, fmt.Errorf("answer: completion: %w: %w", corpus.ErrUpstreamFailure, err)
	}

	log.Debug("answer: generated",
		slog.Int("chunks", len(res.Chunks)),
		slog.Int("sources", len(res.Sources)),
	)

	chunks := make([]Source, 0, len(res.Chunks))
	for _, sc := range res.Chunks {
		chunks = append(chunks, Source{Title: sc.Chunk.Title, Text: sc.Chunk.Text, Score: sc.Score})
	}
	return Response{
		Answer:  text,
		Matched: true,
		Sources: res.Sources,
		Chunks:  chunks,
	}, nil
}

// BuildPrompt concatenates the selected chunk texts with numbered labels and
// appends the question. The numbering matches the similarity order the
// chunks were selected in.
func BuildPrompt(question string, res retrieval.Result) string {
	var b strings.Builder
	b.WriteString("Lecture excerpts:\n\n")
	for i, sc := range res.Chunks {
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, sc.Chunk.Title, sc.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
