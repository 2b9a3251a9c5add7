package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns text into tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// RuneTokenizer treats every rune as one token. It is the fallback when no
// BPE encoding is available and keeps splitting deterministic in tests.
type RuneTokenizer struct{}

func (RuneTokenizer) Encode(text string) []int {
	runes := []rune(text)
	out := make([]int, len(runes))
	for i, r := range runes {
		out[i] = int(r)
	}
	return out
}

func (RuneTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

// BPETokenizer wraps a tiktoken encoding.
type BPETokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewBPETokenizer loads the named tiktoken encoding (e.g. "cl100k_base").
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &BPETokenizer{enc: enc}, nil
}

func (t *BPETokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *BPETokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *BPETokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// DefaultTokenizer returns the cl100k_base tokenizer, or RuneTokenizer when
// the encoding cannot be loaded.
func DefaultTokenizer() Tokenizer {
	if t, err := NewBPETokenizer("cl100k_base"); err == nil {
		return t
	}
	return RuneTokenizer{}
}

// TokenSplitter cuts text into windows of at most Size tokens where
// consecutive windows share Overlap tokens.
type TokenSplitter struct {
	tokenizer Tokenizer
	size      int
	overlap   int
}

// NewTokenSplitter creates a splitter. Overlap must be smaller than size.
func NewTokenSplitter(tok Tokenizer, size, overlap int) (*TokenSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if tok == nil {
		tok = RuneTokenizer{}
	}
	return &TokenSplitter{tokenizer: tok, size: size, overlap: overlap}, nil
}

// Split returns the windows of text in order. Empty text yields nil.
func (s *TokenSplitter) Split(text string) []string {
	tokens := s.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	step := s.size - s.overlap
	var out []string
	for i := 0; i < len(tokens); i += step {
		end := i + s.size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, s.tokenizer.Decode(tokens[i:end]))
		if end >= len(tokens) {
			break
		}
	}
	return out
}
