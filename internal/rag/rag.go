// Package rag answers questions about a repository in three stages: the
// question is condensed against the chat history, relevant chunks are
// retrieved for the condensed question, and an answer is generated from
// them.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/history"
	"clara/internal/llm"
	"clara/internal/logging"
	"clara/internal/vectorstore"
)

var (
	// ErrRetrieval wraps failures of the vector store.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration wraps failures of the completion service.
	ErrGeneration = errors.New("generation failed")
)

// Completer renders a prompt template and returns the model's reply.
type Completer interface {
	Complete(ctx context.Context, templateID string, vars map[string]string) (string, error)
}

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int, mode vectorstore.SearchMode) ([]chunker.Chunk, error)
}

// Options configures retrieval.
type Options struct {
	K    int
	Mode vectorstore.SearchMode
}

// Result is the outcome of one successful query.
type Result struct {
	Question  string
	Condensed string
	Answer    string
	Sources   []chunker.Chunk
	// Context is the text the answer was generated from.
	Context string
}

// Orchestrator runs queries one at a time and records each successful
// question/answer pair in its history.
type Orchestrator struct {
	mu        sync.Mutex
	completer Completer
	retriever Retriever
	history   *history.History
	opts      Options
	logger    *zap.Logger
	last      *Result
}

// New creates an Orchestrator.
func New(c Completer, r Retriever, h *history.History, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.K <= 0 {
		opts.K = 6
	}
	return &Orchestrator{
		completer: c,
		retriever: r,
		history:   h,
		opts:      opts,
		logger:    logging.OrNop(logger),
	}
}

// History returns the conversation history.
func (o *Orchestrator) History() *history.History { return o.history }

// Last returns the most recent successful result, or nil.
func (o *Orchestrator) Last() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Ask answers question. Concurrent calls are serialised. On any error,
// including cancellation of ctx, the history is left unchanged.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()

	condensed, err := o.completer.Complete(ctx, llm.TemplateCondense, map[string]string{
		"chat_history": history.Format(o.history.Turns()),
		"question":     question,
	})
	if err != nil {
		return nil, stageError(ctx, ErrGeneration, "condense", err)
	}
	condensed = strings.TrimSpace(condensed)
	if condensed == "" {
		condensed = question
	}
	o.logger.Debug("condensed question", zap.String("question", condensed))

	sources, err := o.retriever.SimilaritySearch(ctx, condensed, o.opts.K, o.opts.Mode)
	if err != nil {
		return nil, stageError(ctx, ErrRetrieval, "retrieve", err)
	}

	contextText := BuildContext(sources)
	answer, err := o.completer.Complete(ctx, llm.TemplateAnswer, map[string]string{
		"context":  contextText,
		"question": condensed,
	})
	if err != nil {
		return nil, stageError(ctx, ErrGeneration, "answer", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.history.Append(history.Turn{Question: question, Answer: answer})
	res := &Result{
		Question:  question,
		Condensed: condensed,
		Answer:    answer,
		Sources:   sources,
		Context:   contextText,
	}
	o.last = res
	o.logger.Info("answered question",
		zap.Int("sources", len(sources)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// stageError reports cancellation as such and everything else as kind.
func stageError(ctx context.Context, kind error, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", stage, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", kind, stage, err)
}

// BuildContext concatenates chunks, each followed by a SOURCE line.
func BuildContext(chunks []chunker.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content + "\nSOURCE: " + c.SourcePath + "\n"
	}
	return strings.Join(parts, "---\n")
}
