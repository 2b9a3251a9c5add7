// Package index builds and reloads the persisted vector index of a
// repository.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/logging"
	"clara/internal/persist"
	"clara/internal/vectorstore"
)

// ErrPathNotFound is returned when the repository root does not exist.
var ErrPathNotFound = errors.New("path not found")

// Options configures ingestion.
type Options struct {
	// Patterns are file-name globs; see config.DefaultPatterns.
	Patterns []string
	// Workers is the number of concurrent chunking workers. Zero means NumCPU.
	Workers int
	// Force rebuilds the index even when a persisted one exists.
	Force bool
	// OnProgress, if set, is called from the writer goroutine.
	OnProgress ProgressFunc
}

// ProgressFunc reports ingestion progress.
type ProgressFunc func(stage string, done, total int)

// Index is an open persisted index for one repository root.
type Index struct {
	Root   string
	Key    string
	Dir    string
	Store  vectorstore.Store
	Stats  Stats
	Reused bool
}

// Close releases the underlying store.
func (i *Index) Close() error { return i.Store.Close() }

// Indexer ingests repositories into persisted vector stores.
type Indexer struct {
	persist *persist.Store
	backend vectorstore.Backend
	chunker *chunker.Chunker
	opts    Options
	logger  *zap.Logger
}

// New creates an Indexer.
func New(ps *persist.Store, backend vectorstore.Backend, ch *chunker.Chunker, opts Options, logger *zap.Logger) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Indexer{
		persist: ps,
		backend: backend,
		chunker: ch,
		opts:    opts,
		logger:  logging.OrNop(logger),
	}
}

// WithProgress returns a copy of idx that reports progress to fn.
func (idx *Indexer) WithProgress(fn ProgressFunc) *Indexer {
	c := *idx
	c.opts.OnProgress = fn
	return &c
}

// ResolveRoot returns the absolute, symlink-free form of root, or
// ErrPathNotFound if it is not an existing directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", abs, ErrPathNotFound)
		}
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%s: %w", resolved, ErrPathNotFound)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", resolved, ErrPathNotFound)
	}
	return resolved, nil
}

// KeyFor returns the persist key of root without requiring it to exist.
func KeyFor(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return persist.Key(abs), nil
}

// Ingest returns the index for root, loading the persisted one when it
// exists and building a new one otherwise. A persisted index that fails to
// load is rebuilt in place. The new index only becomes visible under its
// key once it is fully written.
func (idx *Indexer) Ingest(ctx context.Context, root string) (*Index, error) {
	abs, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	key := persist.Key(abs)
	log := idx.logger.With(zap.String("root", abs), zap.String("key", key))

	if !idx.opts.Force && idx.persist.Exists(key) {
		i, err := idx.load(ctx, abs, key)
		if err == nil {
			log.Info("using persisted index", zap.String("dir", i.Dir))
			return i, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("persisted index unusable, rebuilding", zap.Error(err))
	}

	staging, err := idx.persist.Stage(key)
	if err != nil {
		return nil, err
	}
	store, err := idx.backend.Create(ctx, staging.Dir)
	if err != nil {
		staging.Abort()
		return nil, fmt.Errorf("create %s store: %w", idx.backend.Name(), err)
	}

	stats, err := runPipeline(ctx, abs, store, idx.chunker, idx.opts, log)
	if err == nil {
		err = store.Persist(ctx)
	}
	if cerr := store.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close store: %w", cerr)
	}
	if err != nil {
		staging.Abort()
		return nil, err
	}

	handle, err := staging.Commit()
	if err != nil {
		staging.Abort()
		return nil, err
	}
	log.Info("indexed repository",
		zap.Int("files", stats.FilesTotal),
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("chunks", stats.ChunksTotal),
	)

	reopened, err := idx.backend.Load(ctx, handle.Dir)
	if err != nil {
		return nil, fmt.Errorf("reopen index: %w", err)
	}
	return &Index{Root: abs, Key: key, Dir: handle.Dir, Store: reopened, Stats: *stats}, nil
}

func (idx *Indexer) load(ctx context.Context, abs, key string) (*Index, error) {
	h, err := idx.persist.Load(key)
	if err != nil {
		return nil, err
	}
	store, err := idx.backend.Load(ctx, h.Dir)
	if err != nil {
		return nil, err
	}
	return &Index{Root: abs, Key: key, Dir: h.Dir, Store: store, Reused: true}, nil
}

// Clean removes the persisted index of root. The root itself need not
// exist any more. It fails with persist.ErrNotFound if nothing is stored.
func (idx *Indexer) Clean(root string) error {
	key, err := KeyFor(root)
	if err != nil {
		return err
	}
	if err := idx.persist.Clean(key); err != nil {
		return err
	}
	idx.logger.Info("removed persisted index", zap.String("key", key))
	return nil
}
