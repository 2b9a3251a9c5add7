// Package chunker decomposes source files into retrieval chunks: one chunk per
// top-level function or class plus a skeleton of the file for languages it
// can parse, and overlapping fixed-size windows for everything else.
package chunker

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// Chunker is safe for concurrent use; each call parses with its own parser.
type Chunker struct {
	registry *Registry
	splitter *TokenSplitter
	logger   *zap.Logger
}

// New creates a chunker backed by the given registry and raw splitter.
func New(r *Registry, s *TokenSplitter, logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{registry: r, splitter: s, logger: logger}
}

// Chunk splits one file. Content that does not parse under its language, or
// whose extension is not registered, falls back to raw windows; that is not
// an error. The only error returned is ctx's.
func (c *Chunker) Chunk(ctx context.Context, path, content string) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seg, ok := c.registry.Lookup(path)
	if !ok {
		return c.raw(path, "", content), nil
	}

	parsed, ok := seg.Segment(ctx, []byte(content))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Debug("parse failed, using raw chunks",
			zap.String("path", path), zap.String("language", string(seg.Language())))
		return c.raw(path, seg.Language(), content), nil
	}

	lang := seg.Language()
	chunks := make([]Chunk, 0, len(parsed.Definitions)+1)
	for _, d := range parsed.Definitions {
		meta := map[string]string{
			MetaNodeType:  d.NodeType,
			MetaStartLine: strconv.Itoa(d.StartLine),
			MetaEndLine:   strconv.Itoa(d.EndLine),
		}
		if d.Name != "" {
			meta[MetaName] = d.Name
		}
		chunks = append(chunks, Chunk{
			Content:    d.Content,
			SourcePath: path,
			Language:   lang,
			Kind:       KindFunctionOrClass,
			Metadata:   meta,
		})
	}
	chunks = append(chunks, Chunk{
		Content:    parsed.Skeleton,
		SourcePath: path,
		Language:   lang,
		Kind:       KindSkeleton,
		Metadata:   map[string]string{},
	})
	return chunks, nil
}

func (c *Chunker) raw(path string, lang Language, content string) []Chunk {
	parts := c.splitter.Split(content)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{
			Content:    p,
			SourcePath: path,
			Language:   lang,
			Kind:       KindRaw,
			Metadata:   map[string]string{MetaChunkIndex: strconv.Itoa(i)},
		}
	}
	return chunks
}
