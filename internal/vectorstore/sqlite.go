package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"clara/internal/chunker"
	"clara/internal/embedder"
	"clara/internal/logging"
)

func init() {
	sqlite_vec.Auto()
}

// DBFile is the database file name inside a persist directory.
const DBFile = "index.db"

// SQLiteBackend stores chunks in SQLite and embeddings in a sqlite-vec table.
type SQLiteBackend struct {
	emb    embedder.Embedder
	opts   Options
	logger *zap.Logger
}

// NewSQLiteBackend returns a backend that embeds with emb.
func NewSQLiteBackend(emb embedder.Embedder, opts Options, logger *zap.Logger) *SQLiteBackend {
	return &SQLiteBackend{emb: emb, opts: opts.withDefaults(), logger: logging.OrNop(logger)}
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

// Create initialises a fresh database in dir.
func (b *SQLiteBackend) Create(ctx context.Context, dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	s, err := b.open(ctx, filepath.Join(dir, DBFile))
	if err != nil {
		return nil, err
	}
	if err := setMeta(ctx, s.db, metaModel, b.emb.Model()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Load reopens a database written by Create and Persist. Anything short of a
// complete index built with the same embedding model is ErrCorrupt.
func (b *SQLiteBackend) Load(ctx context.Context, dir string) (Store, error) {
	path := filepath.Join(dir, DBFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s, err := b.open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	complete, err := getMeta(ctx, s.db, metaComplete)
	if err != nil || complete != "1" {
		s.Close()
		return nil, fmt.Errorf("%w: index was never persisted", ErrCorrupt)
	}
	model, err := getMeta(ctx, s.db, metaModel)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if model != b.emb.Model() {
		s.Close()
		return nil, fmt.Errorf("%w: built with embedding model %q, configured %q", ErrCorrupt, model, b.emb.Model())
	}
	dim, _ := getMeta(ctx, s.db, metaDimension)
	if dim != "" {
		n, err := strconv.Atoi(dim)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: bad dimension %q", ErrCorrupt, dim)
		}
		s.dim = n
	}
	return s, nil
}

func (b *SQLiteBackend) open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, emb: b.emb, opts: b.opts, logger: b.logger}, nil
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db     *sql.DB
	emb    embedder.Embedder
	opts   Options
	logger *zap.Logger

	mu  sync.Mutex // serialises writers
	dim int        // 0 until the vec table exists
}

// Insert embeds chunks and writes them in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := embedAll(ctx, s.emb, chunkTexts(chunks))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureVecTable(ctx, len(vecs[0])); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fileIDs := make(map[string]int64)
	for i, c := range chunks {
		if len(vecs[i]) != s.dim {
			return fmt.Errorf("embedding for %s has dimension %d, index has %d", c.SourcePath, len(vecs[i]), s.dim)
		}
		fileID, ok := fileIDs[c.SourcePath]
		if !ok {
			if fileID, err = upsertFile(ctx, tx, c.SourcePath, string(c.Language)); err != nil {
				return fmt.Errorf("upsert file %s: %w", c.SourcePath, err)
			}
			fileIDs[c.SourcePath] = fileID
		}

		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if c.Metadata == nil {
			meta = []byte("{}")
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (file_id, kind, content, metadata) VALUES (?, ?, ?, ?)",
			fileID, c.Kind.String(), c.Content, string(meta),
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		blob, err := sqlite_vec.SerializeFloat32(vecs[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", chunkID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)", chunkID, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", chunkID, err)
		}
	}
	return tx.Commit()
}

func upsertFile(ctx context.Context, tx *sql.Tx, path, language string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO files (path, language) VALUES (?, ?) ON CONFLICT(path) DO NOTHING",
		path, language,
	); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM files WHERE path = ?", path).Scan(&id)
	return id, err
}

func (s *SQLiteStore) ensureVecTable(ctx context.Context, dim int) error {
	if s.dim != 0 {
		return nil
	}
	if dim == 0 {
		return errors.New("embedder returned an empty vector")
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(vecDDL, dim)); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	if err := setMeta(ctx, s.db, metaDimension, strconv.Itoa(dim)); err != nil {
		return err
	}
	s.dim = dim
	s.logger.Debug("created vector table", zap.Int("dimension", dim))
	return nil
}

type scored struct {
	chunk chunker.Chunk
	vec   []float32
}

// SimilaritySearch embeds query and returns the closest chunks.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query string, k int, mode SearchMode) ([]chunker.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if dim == 0 {
		return nil, nil
	}

	qvec, err := embedder.EmbedSingle(ctx, s.emb, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetch := k
	if mode == MMR {
		fetch = max(k, s.opts.FetchK)
	}
	cands, err := s.knn(ctx, qvec, fetch)
	if err != nil {
		return nil, err
	}

	if mode != MMR {
		out := make([]chunker.Chunk, len(cands))
		for i, c := range cands {
			out[i] = c.chunk
		}
		return out, nil
	}

	vecs := make([][]float32, len(cands))
	for i, c := range cands {
		vecs[i] = c.vec
	}
	picked := mmr(qvec, vecs, k, s.opts.Lambda)
	out := make([]chunker.Chunk, len(picked))
	for i, j := range picked {
		out[i] = cands[j].chunk
	}
	return out, nil
}

func (s *SQLiteStore) knn(ctx context.Context, qvec []float32, k int) ([]scored, error) {
	blob, err := sqlite_vec.SerializeFloat32(qvec)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT chunk_id, distance, embedding
			FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT knn.embedding, c.kind, c.content, c.metadata, f.path, f.language
		FROM knn
		JOIN chunks c ON c.id = knn.chunk_id
		JOIN files f ON f.id = c.file_id
		ORDER BY knn.distance
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []scored
	for rows.Next() {
		var (
			r          scored
			emb        []byte
			kind, meta string
			lang       string
		)
		if err := rows.Scan(&emb, &kind, &r.chunk.Content, &meta, &r.chunk.SourcePath, &lang); err != nil {
			return nil, err
		}
		r.chunk.Kind = chunker.ParseKind(kind)
		r.chunk.Language = chunker.Language(lang)
		if err := json.Unmarshal([]byte(meta), &r.chunk.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk metadata: %w", err)
		}
		r.vec = decodeFloat32(emb)
		results = append(results, r)
	}
	return results, rows.Err()
}

// decodeFloat32 reverses sqlite_vec.SerializeFloat32.
func decodeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Persist marks the index complete and folds the WAL into the main file.
func (s *SQLiteStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := setMeta(ctx, s.db, metaComplete, "1"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
