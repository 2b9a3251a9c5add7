package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"clara/internal/chunker"
	"clara/internal/chunker/languages"
	"clara/internal/persist"
	"clara/internal/vectorstore"
)

type fakeEmbedder struct {
	calls atomic.Int32
	fail  error
}

func (e *fakeEmbedder) Model() string { return "fake" }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

const pySource = `import os

def hello(text):
    print(text)

hello("hi")
`

func setup(t *testing.T, emb *fakeEmbedder, force bool) (*Indexer, *persist.Store, string) {
	t.Helper()
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "main.py"), []byte(pySource), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "data.xyz"), []byte("0123456789abcdefghijklmnopqrstuvwxyz"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "ignored.txt"), []byte("not matched"), 0o644); err != nil {
		t.Fatal(err)
	}

	splitter, err := chunker.NewTokenSplitter(chunker.RuneTokenizer{}, 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	ps := persist.New(t.TempDir(), nil)
	idx := New(ps,
		vectorstore.NewMemoryBackend(emb, vectorstore.Options{}, nil),
		chunker.New(languages.Default(), splitter, nil),
		Options{Patterns: []string{"*.py", "*.xyz"}, Workers: 2, Force: force},
		nil,
	)
	return idx, ps, repo
}

func allChunks(t *testing.T, i *Index) []chunker.Chunk {
	t.Helper()
	got, err := i.Store.SimilaritySearch(context.Background(), "anything", 1000, vectorstore.Similarity)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestIngest_chunksByLanguage(t *testing.T) {
	idx, ps, repo := setup(t, &fakeEmbedder{}, false)
	i, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	defer i.Close()

	if i.Reused {
		t.Error("first ingest should not reuse")
	}
	if i.Stats.FilesTotal != 2 || i.Stats.FilesIndexed != 2 || i.Stats.FilesSkipped != 0 {
		t.Errorf("unexpected stats %+v", i.Stats)
	}
	if !ps.Exists(i.Key) {
		t.Error("index not persisted under its key")
	}

	kinds := map[string]map[chunker.Kind]int{}
	for _, c := range allChunks(t, i) {
		if kinds[c.SourcePath] == nil {
			kinds[c.SourcePath] = map[chunker.Kind]int{}
		}
		kinds[c.SourcePath][c.Kind]++
	}
	if py := kinds["main.py"]; py[chunker.KindFunctionOrClass] != 1 || py[chunker.KindSkeleton] != 1 || py[chunker.KindRaw] != 0 {
		t.Errorf("main.py chunks = %v", py)
	}
	// 36 runes, window 20, overlap 5: [0,20) [15,35) [30,36)
	if xyz := kinds["data.xyz"]; xyz[chunker.KindRaw] != 3 || len(xyz) != 1 {
		t.Errorf("data.xyz chunks = %v", xyz)
	}
	if i.Stats.ChunksTotal != 5 {
		t.Errorf("ChunksTotal = %d, want 5", i.Stats.ChunksTotal)
	}
}

func TestIngest_reusesPersistedIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, _, repo := setup(t, emb, false)
	first, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	calls := emb.calls.Load()

	second, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if !second.Reused || second.Key != first.Key {
		t.Errorf("expected reuse of %s, got %+v", first.Key, second)
	}
	if emb.calls.Load() != calls {
		t.Errorf("reuse should not embed, calls went from %d to %d", calls, emb.calls.Load())
	}
	if len(allChunks(t, second)) != 5 {
		t.Error("reloaded index lost chunks")
	}
}

func TestIngest_force(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, _, repo := setup(t, emb, false)
	first, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	idx.opts.Force = true
	again, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if again.Reused {
		t.Error("forced ingest must rebuild")
	}
	if len(allChunks(t, again)) != 5 {
		t.Error("rebuilt index should not accumulate duplicate chunks")
	}
}

func TestIngest_corruptIndexIsRebuilt(t *testing.T) {
	idx, _, repo := setup(t, &fakeEmbedder{}, false)
	first, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	if err := os.WriteFile(filepath.Join(first.Dir, vectorstore.MemoryFile), []byte("{garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if again.Reused {
		t.Error("corrupt index must not be reused")
	}
	if len(allChunks(t, again)) != 5 {
		t.Error("rebuilt index is incomplete")
	}
}

func TestIngest_missingRoot(t *testing.T) {
	idx, _, repo := setup(t, &fakeEmbedder{}, false)
	_, err := idx.Ingest(context.Background(), filepath.Join(repo, "does-not-exist"))
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
}

func TestIngest_failureLeavesNoIndex(t *testing.T) {
	boom := errors.New("embedding service down")
	idx, ps, repo := setup(t, &fakeEmbedder{fail: boom}, false)
	_, err := idx.Ingest(context.Background(), repo)
	if !errors.Is(err, boom) {
		t.Fatalf("expected embed failure, got %v", err)
	}
	assertEmpty(t, ps)
}

func TestIngest_cancelled(t *testing.T) {
	idx, ps, repo := setup(t, &fakeEmbedder{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Ingest(ctx, repo); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertEmpty(t, ps)
}

func assertEmpty(t *testing.T, ps *persist.Store) {
	t.Helper()
	entries, err := os.ReadDir(ps.BaseDir())
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no persisted state, found %v", entries)
	}
}

func TestClean(t *testing.T) {
	idx, ps, repo := setup(t, &fakeEmbedder{}, false)

	if err := idx.Clean(repo); !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("clean before ingest: expected ErrNotFound, got %v", err)
	}
	assertEmpty(t, ps)

	i, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	i.Close()
	if err := idx.Clean(repo); err != nil {
		t.Fatal(err)
	}
	if ps.Exists(i.Key) {
		t.Error("index still present after clean")
	}
}

func TestIngest_removesInterruptedBuild(t *testing.T) {
	idx, ps, repo := setup(t, &fakeEmbedder{}, false)
	key, err := KeyFor(repo)
	if err != nil {
		t.Fatal(err)
	}
	// Stage without Commit or Abort, as a killed process would.
	if _, err := ps.Stage(key); err != nil {
		t.Fatal(err)
	}

	i, err := idx.Ingest(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	i.Close()
	entries, _ := os.ReadDir(ps.BaseDir())
	if len(entries) != 1 || entries[0].Name() != key {
		t.Errorf("expected only %s after ingest, got %v", key, entries)
	}

	if _, err := ps.Stage(key); err != nil {
		t.Fatal(err)
	}
	if err := idx.Clean(repo); err != nil {
		t.Fatal(err)
	}
	assertEmpty(t, ps)
}

func TestResolveRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	os.WriteFile(file, []byte("x"), 0o644)

	if _, err := ResolveRoot(file); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("file root: %v", err)
	}
	got, err := ResolveRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("ResolveRoot = %q, want %q", got, want)
	}
	key, _ := KeyFor(dir)
	if key != persist.Key(want) {
		t.Errorf("KeyFor = %q", key)
	}
}
