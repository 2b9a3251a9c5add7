package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and the top-level node types
// that count as function or class definitions for a language.
type LanguageSpec struct {
	Name     Language
	Language *sitter.Language
	// TopLevel lists node types that are emitted as definitions when they
	// are direct children of the root node.
	TopLevel []string
	// Wrappers lists node types (e.g. export_statement) that count as a
	// definition when their "declaration" field is a TopLevel node.
	Wrappers []string
	// CommentPrefix starts a line comment in the language.
	CommentPrefix string
	Extensions    []string
}

// Registry maps file extensions to segmenters.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Segmenter // extension (without dot) → segmenter
	langs map[Language]Segmenter
}

// NewRegistry creates a registry that only knows notebooks. Tree-sitter
// languages are added with Register.
func NewRegistry() *Registry {
	r := &Registry{
		byExt: make(map[string]Segmenter),
		langs: make(map[Language]Segmenter),
	}
	nb := notebookSegmenter{}
	r.byExt["ipynb"] = nb
	r.langs[LangNotebook] = nb
	return r
}

// Register adds a tree-sitter language.
func (r *Registry) Register(spec *LanguageSpec) {
	seg := newTreeSitterSegmenter(spec)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[spec.Name] = seg
	for _, ext := range spec.Extensions {
		r.byExt[ext] = seg
	}
}

// Lookup returns the segmenter for a file path based on its extension.
func (r *Registry) Lookup(path string) (Segmenter, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byExt[ext]
	return s, ok
}

// LanguageName returns the language for a file path, or "".
func (r *Registry) LanguageName(path string) Language {
	s, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	return s.Language()
}

// Languages returns the registered language names.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Language, 0, len(r.langs))
	for l := range r.langs {
		out = append(out, l)
	}
	return out
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}
