// Package history keeps the question/answer turns of a chat session under a
// length budget.
package history

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Turn is one question/answer pair.
type Turn struct {
	Question string
	Answer   string
}

// Measure returns the serialized length of a string in budget units.
type Measure func(string) int

// CharCount measures length in characters.
func CharCount(s string) int { return utf8.RuneCountInString(s) }

// Len returns the serialized length of a turn under m.
func (t Turn) Len(m Measure) int {
	return m(t.Question) + m(t.Answer)
}

// Trim returns the turns to keep after appending next to turns. The oldest
// turns are evicted until pinned, the survivors and next fit in budget, or
// only next is left. next is always kept and order is preserved. The input
// slice is not modified.
func Trim(turns []Turn, pinned *Turn, budget int, next Turn, m Measure) []Turn {
	total := next.Len(m)
	if pinned != nil {
		total += pinned.Len(m)
	}
	for _, t := range turns {
		total += t.Len(m)
	}

	start := 0
	for total > budget && start < len(turns) {
		total -= turns[start].Len(m)
		start++
	}

	out := make([]Turn, 0, len(turns)-start+1)
	out = append(out, turns[start:]...)
	return append(out, next)
}

// History is a bounded, ordered sequence of turns with an optional pinned
// prefix that is never evicted. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	pinned  *Turn
	turns   []Turn
	budget  int
	measure Measure
}

// Option configures a History.
type Option func(*History)

// WithPinned sets an immutable first turn.
func WithPinned(t Turn) Option {
	return func(h *History) { h.pinned = &t }
}

// WithMeasure replaces the default character-count measure.
func WithMeasure(m Measure) Option {
	return func(h *History) {
		if m != nil {
			h.measure = m
		}
	}
}

// New creates an empty history with the given budget.
func New(budget int, opts ...Option) *History {
	h := &History{budget: budget, measure: CharCount}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Budget returns the configured budget.
func (h *History) Budget() int { return h.budget }

// Append adds a turn, evicting the oldest non-pinned turns as needed.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = Trim(h.turns, h.pinned, h.budget, t, h.measure)
}

// Turns returns the pinned prefix (if any) followed by the retained turns,
// oldest first.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, 0, len(h.turns)+1)
	if h.pinned != nil {
		out = append(out, *h.pinned)
	}
	return append(out, h.turns...)
}

// Len returns the serialized length of everything Turns returns.
func (h *History) Len() int {
	total := 0
	for _, t := range h.Turns() {
		total += t.Len(h.measure)
	}
	return total
}

// Clear drops every non-pinned turn.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Format renders turns the way the condense prompt expects them.
func Format(turns []Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = "Human: " + t.Question + "\n\nAssistant: " + t.Answer
	}
	return strings.Join(parts, "\n\n")
}
