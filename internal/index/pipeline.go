package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clara/internal/chunker"
	"clara/internal/vectorstore"
	"clara/internal/walker"
)

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	ChunksTotal  int
}

// fileBatch is the chunks extracted from a single file.
type fileBatch struct {
	info   walker.FileInfo
	chunks []chunker.Chunk
}

// runPipeline walks root, chunks matched files on opts.Workers goroutines
// and funnels the results through a single writer into store.
func runPipeline(
	ctx context.Context,
	root string,
	store vectorstore.Store,
	ch *chunker.Chunker,
	opts Options,
	log *zap.Logger,
) (*Stats, error) {
	var stats Stats
	var filesTotal atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	// Stage 1: Walk
	fileCh, walkErrCh := walker.Walk(gctx, root, opts.Patterns)

	// Stage 2: Read + chunk (N workers)
	batchCh := make(chan fileBatch, opts.Workers)
	var chunkWg sync.WaitGroup
	for range opts.Workers {
		chunkWg.Add(1)
		g.Go(func() error {
			defer chunkWg.Done()
			for fi := range fileCh {
				filesTotal.Add(1)
				text, err := walker.ReadText(fi.Path)
				if err != nil {
					if errors.Is(err, walker.ErrBinary) {
						log.Debug("skipping binary file", zap.String("path", fi.RelPath))
					} else {
						log.Warn("read failed", zap.String("path", fi.RelPath), zap.Error(err))
					}
					continue
				}
				chunks, err := ch.Chunk(gctx, fi.RelPath, text)
				if err != nil {
					return err
				}
				if len(chunks) == 0 {
					continue
				}
				select {
				case batchCh <- fileBatch{info: fi, chunks: chunks}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		chunkWg.Wait()
		close(batchCh)
	}()

	// Stage 3: Embed + store (1 writer)
	g.Go(func() error {
		for b := range batchCh {
			if err := store.Insert(gctx, b.chunks); err != nil {
				return fmt.Errorf("store %s: %w", b.info.RelPath, err)
			}
			stats.FilesIndexed++
			stats.ChunksTotal += len(b.chunks)
			if opts.OnProgress != nil {
				opts.OnProgress("Indexing files...", stats.FilesIndexed, int(filesTotal.Load()))
			}
		}
		return nil
	})

	err := g.Wait()
	walkErr := <-walkErrCh
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	stats.FilesTotal = int(filesTotal.Load())
	stats.FilesSkipped = stats.FilesTotal - stats.FilesIndexed
	return &stats, nil
}
