// Package vectorstore embeds chunks and answers similarity queries over them.
// A Backend creates or reopens a Store inside a persist directory.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/embedder"
)

// ErrCorrupt is returned by Backend.Load when the directory does not hold a
// complete, readable index.
var ErrCorrupt = errors.New("vector index corrupt or incomplete")

// embedBatchSize is how many chunks are sent to the embedder at once.
const embedBatchSize = 32

// SearchMode selects the retrieval strategy.
type SearchMode int

const (
	// Similarity returns the k nearest chunks.
	Similarity SearchMode = iota
	// MMR re-ranks the nearest candidates by maximal marginal relevance.
	MMR
)

func (m SearchMode) String() string {
	switch m {
	case MMR:
		return "mmr"
	default:
		return "similarity"
	}
}

// ParseSearchMode maps a configured search type to a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "similarity", "":
		return Similarity, nil
	case "mmr":
		return MMR, nil
	}
	return Similarity, fmt.Errorf("unknown search type %q", s)
}

// Store is an open vector index.
type Store interface {
	// Insert embeds and stores chunks.
	Insert(ctx context.Context, chunks []chunker.Chunk) error
	// SimilaritySearch returns up to k chunks, most relevant first.
	SimilaritySearch(ctx context.Context, query string, k int, mode SearchMode) ([]chunker.Chunk, error)
	// Persist flushes the index and marks it complete.
	Persist(ctx context.Context) error
	Close() error
}

// Backend creates and reopens stores in a directory.
type Backend interface {
	Name() string
	Create(ctx context.Context, dir string) (Store, error)
	Load(ctx context.Context, dir string) (Store, error)
}

// Options tunes retrieval.
type Options struct {
	// FetchK is the candidate pool size for MMR.
	FetchK int
	// Lambda trades relevance (1) against diversity (0) in MMR.
	Lambda float64
}

func (o Options) withDefaults() Options {
	if o.FetchK <= 0 {
		o.FetchK = 20
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		o.Lambda = 0.5
	}
	return o
}

// NewBackend returns the backend registered under name.
func NewBackend(name string, emb embedder.Embedder, opts Options, logger *zap.Logger) (Backend, error) {
	switch name {
	case "sqlite", "":
		return NewSQLiteBackend(emb, opts, logger), nil
	case "memory":
		return NewMemoryBackend(emb, opts, logger), nil
	}
	return nil, fmt.Errorf("unknown vector store backend %q", name)
}

// embedAll embeds texts in batches.
func embedAll(ctx context.Context, emb embedder.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		vecs, err := emb.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-i)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func chunkTexts(chunks []chunker.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return texts
}
