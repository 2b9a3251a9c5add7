package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/embedder"
	"clara/internal/logging"
)

// MemoryFile is the snapshot file a memory store persists to.
const MemoryFile = "memory.json"

// MemoryBackend keeps vectors in process and searches them by brute force.
type MemoryBackend struct {
	emb    embedder.Embedder
	opts   Options
	logger *zap.Logger
}

// NewMemoryBackend returns a backend that embeds with emb.
func NewMemoryBackend(emb embedder.Embedder, opts Options, logger *zap.Logger) *MemoryBackend {
	return &MemoryBackend{emb: emb, opts: opts.withDefaults(), logger: logging.OrNop(logger)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Create(ctx context.Context, dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &MemoryStore{dir: dir, emb: b.emb, opts: b.opts, logger: b.logger}, nil
}

func (b *MemoryBackend) Load(ctx context.Context, dir string) (Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, MemoryFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Model != b.emb.Model() {
		return nil, fmt.Errorf("%w: built with embedding model %q, configured %q", ErrCorrupt, snap.Model, b.emb.Model())
	}
	return &MemoryStore{dir: dir, emb: b.emb, opts: b.opts, logger: b.logger, entries: snap.Entries}, nil
}

type memoryEntry struct {
	ID     string      `json:"id"`
	Chunk  memoryChunk `json:"chunk"`
	Vector []float32   `json:"vector"`
}

type memoryChunk struct {
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path"`
	Language   string            `json:"language,omitempty"`
	Kind       string            `json:"kind"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type memorySnapshot struct {
	Model   string        `json:"model"`
	Entries []memoryEntry `json:"entries"`
}

func toMemoryChunk(c chunker.Chunk) memoryChunk {
	return memoryChunk{
		Content:    c.Content,
		SourcePath: c.SourcePath,
		Language:   string(c.Language),
		Kind:       c.Kind.String(),
		Metadata:   c.Metadata,
	}
}

func (m memoryChunk) chunk() chunker.Chunk {
	return chunker.Chunk{
		Content:    m.Content,
		SourcePath: m.SourcePath,
		Language:   chunker.Language(m.Language),
		Kind:       chunker.ParseKind(m.Kind),
		Metadata:   m.Metadata,
	}
}

// MemoryStore is a brute-force in-memory Store.
type MemoryStore struct {
	dir    string
	emb    embedder.Embedder
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	entries []memoryEntry
}

func (s *MemoryStore) Insert(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := embedAll(ctx, s.emb, chunkTexts(chunks))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.entries = append(s.entries, memoryEntry{
			ID:     uuid.NewString(),
			Chunk:  toMemoryChunk(c),
			Vector: vecs[i],
		})
	}
	return nil
}

func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int, mode SearchMode) ([]chunker.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	qvec, err := embedder.EmbedSingle(ctx, s.emb, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	vecs := make([][]float32, len(s.entries))
	for i, e := range s.entries {
		vecs[i] = e.Vector
	}

	var picked []int
	if mode == MMR {
		cands := topK(qvec, vecs, max(k, s.opts.FetchK))
		candVecs := make([][]float32, len(cands))
		for i, j := range cands {
			candVecs[i] = vecs[j]
		}
		for _, i := range mmr(qvec, candVecs, k, s.opts.Lambda) {
			picked = append(picked, cands[i])
		}
	} else {
		picked = topK(qvec, vecs, k)
	}

	out := make([]chunker.Chunk, len(picked))
	for i, j := range picked {
		out[i] = s.entries[j].Chunk.chunk()
	}
	return out, nil
}

// Persist writes the snapshot file.
func (s *MemoryStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	n := len(s.entries)
	data, err := json.Marshal(memorySnapshot{Model: s.emb.Model(), Entries: s.entries})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal memory index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, MemoryFile), data, 0o644); err != nil {
		return fmt.Errorf("write memory index: %w", err)
	}
	s.logger.Debug("persisted memory index", zap.Int("entries", n))
	return nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Close() error { return nil }
