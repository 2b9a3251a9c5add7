package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/chunker/languages"
	"clara/internal/embedder"
	"clara/internal/history"
	"clara/internal/index"
	"clara/internal/llm"
	"clara/internal/persist"
	"clara/internal/rag"
	"clara/internal/vectorstore"
)

// usePathArg lets a positional argument override --path.
func usePathArg(args []string) {
	if len(args) > 0 {
		flagPath = args[0]
	}
}

func openPersist() (*persist.Store, error) {
	base, err := persist.DefaultBaseDir(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}
	return persist.New(base, logger), nil
}

// newIndexer wires the ingestion pipeline from the loaded config.
func newIndexer(force bool) (*index.Indexer, *persist.Store, error) {
	ps, err := openPersist()
	if err != nil {
		return nil, nil, err
	}

	emb := embedder.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	backend, err := vectorstore.NewBackend(cfg.Index.Backend, emb, vectorstore.Options{
		FetchK: cfg.Index.FetchK,
		Lambda: cfg.Index.MMRLambda,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	splitter, err := chunker.NewTokenSplitter(chunker.DefaultTokenizer(), cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}
	ch := chunker.New(languages.Default(), splitter, logger)

	return index.New(ps, backend, ch, index.Options{
		Patterns: cfg.Index.Patterns,
		Workers:  cfg.Index.Workers,
		Force:    force,
	}, logger), ps, nil
}

// newOrchestrator builds the query pipeline over an opened index.
func newOrchestrator(i *index.Index) (*rag.Orchestrator, error) {
	completer, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	mode, err := vectorstore.ParseSearchMode(cfg.Index.SearchType)
	if err != nil {
		return nil, err
	}
	return rag.New(completer, i.Store, newHistory(), rag.Options{K: cfg.Index.K, Mode: mode}, logger), nil
}

func newHistory() *history.History {
	var opts []history.Option
	if cfg.LLM.ChatHistory.Unit == "tokens" {
		bpe, err := chunker.NewBPETokenizer("cl100k_base")
		if err != nil {
			logger.Warn("token encoding unavailable, measuring history in characters", zap.Error(err))
		} else {
			opts = append(opts, history.WithMeasure(bpe.Count))
		}
	}
	return history.New(cfg.LLM.ChatHistory.TokenLimit, opts...)
}

// session is an opened index plus the query pipeline over it.
type session struct {
	index   *index.Index
	orch    *rag.Orchestrator
	persist *persist.Store
}

func (s *session) Close() error { return s.index.Close() }

// openSession ingests (or reloads) the repository at flagPath.
func openSession(ctx context.Context) (*session, error) {
	idx, ps, err := newIndexer(false)
	if err != nil {
		return nil, err
	}
	i, err := idx.Ingest(ctx, flagPath)
	if err != nil {
		return nil, describeIngestError(err)
	}
	orch, err := newOrchestrator(i)
	if err != nil {
		i.Close()
		return nil, err
	}
	return &session{index: i, orch: orch, persist: ps}, nil
}

func describeIngestError(err error) error {
	if errors.Is(err, index.ErrPathNotFound) {
		return fmt.Errorf("cannot index repository: %w", err)
	}
	return err
}

// describeQueryError turns a failed query into a one-line message.
func describeQueryError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "query cancelled"
	case errors.Is(err, llm.ErrInvalidRequest):
		return fmt.Sprintf("the model rejected the request: %v", err)
	case errors.Is(err, rag.ErrRetrieval):
		return fmt.Sprintf("search failed: %v", err)
	default:
		return err.Error()
	}
}
