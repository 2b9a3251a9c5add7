// Package persist maps absolute repository paths to stable cache directories
// and manages the lifecycle of the index persisted in each of them.
package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"clara/internal/logging"
)

// CacheDirEnvVar overrides the base cache directory.
const CacheDirEnvVar = "CLARA_CACHE_DIR"

// keyHashLen is the number of hex characters of the SHA-256 digest kept in a
// key (64 bits).
const keyHashLen = 16

const (
	completeMarker = ".complete"
	historyFile    = "history.txt"
)

// ErrNotFound is returned when no persisted index exists for a key.
var ErrNotFound = errors.New("persisted index not found")

// ErrIncomplete is returned by Load when the key directory exists but was
// never committed.
var ErrIncomplete = errors.New("persisted index incomplete")

// Key returns the persist key for an absolute, normalized repository path:
// a truncated SHA-256 of the cleaned path, an underscore, and its base name.
// Callers resolve symlinks and relative paths before calling.
func Key(absPath string) string {
	cleaned := filepath.Clean(absPath)
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:])[:keyHashLen] + "_" + filepath.Base(cleaned)
}

// Handle points at a committed index directory.
type Handle struct {
	Key string
	Dir string
}

// Store manages persisted indexes under a base directory, one directory per key.
type Store struct {
	baseDir string
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at baseDir.
func New(baseDir string, logger *zap.Logger) *Store {
	return &Store{
		baseDir: baseDir,
		logger:  logging.OrNop(logger),
		locks:   make(map[string]*sync.Mutex),
	}
}

// DefaultBaseDir resolves the cache root: override if non-empty, then
// $CLARA_CACHE_DIR, then the platform cache dir (honouring XDG_CACHE_HOME),
// then ~/.cache.
func DefaultBaseDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(CacheDirEnvVar); env != "" {
		return env, nil
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "clara"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(home, ".cache", "clara"), nil
}

// BaseDir returns the directory holding all key directories.
func (s *Store) BaseDir() string { return s.baseDir }

// Dir returns the directory for key, whether or not it exists.
func (s *Store) Dir(key string) string {
	return filepath.Join(s.baseDir, key)
}

// HistoryPath returns the REPL line-history file kept alongside the index.
func (s *Store) HistoryPath(key string) string {
	return filepath.Join(s.Dir(key), historyFile)
}

// Exists reports whether a committed index exists for key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(key), completeMarker))
	return err == nil
}

// Load returns a handle to the committed index for key. It returns
// ErrNotFound when the directory is absent and ErrIncomplete when it exists
// without a completion marker.
func (s *Store) Load(key string) (Handle, error) {
	dir := s.Dir(key)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Handle{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return Handle{}, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return Handle{}, fmt.Errorf("%s is not a directory: %w", dir, ErrIncomplete)
	}
	if !s.Exists(key) {
		return Handle{}, fmt.Errorf("%s: %w", key, ErrIncomplete)
	}
	return Handle{Key: key, Dir: dir}, nil
}

// HasState reports whether anything is stored for key: an index directory,
// committed or not, or staging directories left by an interrupted build.
func (s *Store) HasState(key string) bool {
	if _, err := os.Stat(s.Dir(key)); err == nil {
		return true
	}
	return len(s.staleStaging(key)) > 0
}

// Clean removes all persisted state for key, including staging directories
// left behind by an interrupted build. It fails with ErrNotFound and touches
// nothing when there is no state for key.
func (s *Store) Clean(key string) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()

	dir := s.Dir(key)
	_, err := os.Stat(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	stale := s.staleStaging(key)
	if err != nil && len(stale) == 0 {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err := s.removeStaging(stale); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

func stagingPattern(key string) string { return "." + key + ".staging-" }

// staleStaging lists the staging directories present for key. Only one build
// per key runs at a time, so any found before staging are leftovers.
func (s *Store) staleStaging(key string) []string {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil
	}
	prefix := stagingPattern(key)
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, filepath.Join(s.baseDir, e.Name()))
		}
	}
	return out
}

func (s *Store) removeStaging(dirs []string) error {
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("remove stale staging dir %s: %w", d, err)
		}
		s.logger.Info("removed stale staging dir", zap.String("dir", d))
	}
	return nil
}

// Staging is a scratch directory a new index is built in before it becomes
// visible under its key.
type Staging struct {
	Dir string

	store *Store
	key   string
	done  bool
}

// Stage creates a fresh staging directory for key, first removing any left
// by an interrupted build. The caller builds the index inside Staging.Dir and
// then calls Commit or Abort.
func (s *Store) Stage(key string) (*Staging, error) {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := s.removeStaging(s.staleStaging(key)); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(s.baseDir, stagingPattern(key))
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Staging{Dir: dir, store: s, key: key}, nil
}

// Commit marks the staged index complete and moves it under its key,
// replacing any previous directory for the same key.
func (st *Staging) Commit() (Handle, error) {
	if st.done {
		return Handle{}, errors.New("staging already finished")
	}
	l := st.store.lock(st.key)
	l.Lock()
	defer l.Unlock()

	if err := os.WriteFile(filepath.Join(st.Dir, completeMarker), nil, 0o644); err != nil {
		return Handle{}, fmt.Errorf("write marker: %w", err)
	}

	target := st.store.Dir(st.key)
	// Keep the REPL history of a replaced index.
	oldHistory := filepath.Join(target, historyFile)
	if _, err := os.Stat(oldHistory); err == nil {
		if err := os.Rename(oldHistory, filepath.Join(st.Dir, historyFile)); err != nil {
			st.store.logger.Warn("could not keep question history", zap.String("path", oldHistory), zap.Error(err))
		}
	}
	if err := os.RemoveAll(target); err != nil {
		return Handle{}, fmt.Errorf("remove previous index: %w", err)
	}
	if err := os.Rename(st.Dir, target); err != nil {
		return Handle{}, fmt.Errorf("commit index: %w", err)
	}
	st.done = true
	return Handle{Key: st.key, Dir: target}, nil
}

// Abort discards the staging directory. It is a no-op after Commit.
func (st *Staging) Abort() error {
	if st.done {
		return nil
	}
	st.done = true
	return os.RemoveAll(st.Dir)
}

func (s *Store) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
