package history

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

const (
	honey = "Sure! Did you know that honey never spoils? Archaeologists have found " +
		"pots of honey in ancient Egyptian tombs that are over 3,000 years old " +
		"and still perfectly edible. Honey has natural preservatives like low " +
		"water content and high acidity, which make it difficult for bacteria " +
		"and microorganisms to grow. As long as it is stored in a sealed " +
		"container, honey can last indefinitely."
	light = "Of course! Did you know that the speed of light is approximately " +
		"299,792 kilometers per second (186,282 miles per second) in a vacuum? " +
		"This incredible speed makes light the fastest thing in the universe. To " +
		"put it into perspective, if you could travel at the speed of light, you " +
		"could circle Earth's equator about 7.5 times in just one second! This " +
		"fundamental constant of nature, known as 'c', plays a crucial role in " +
		"various scientific theories, most notably in Albert Einstein's theory " +
		"of relativity."
)

func TestHistory_New(t *testing.T) {
	h := New(3333)
	if len(h.Turns()) != 0 {
		t.Errorf("expected empty history, got %v", h.Turns())
	}
	if h.Budget() != 3333 {
		t.Errorf("budget = %d", h.Budget())
	}
}

func TestHistory_Append(t *testing.T) {
	h := New(3500)
	h.Append(Turn{"How are you?", "I'm fine!"})
	h.Append(Turn{"Nice! What's your name?", "I'm Clara."})
	want := []Turn{
		{"How are you?", "I'm fine!"},
		{"Nice! What's your name?", "I'm Clara."},
	}
	if got := h.Turns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Turns() = %v, want %v", got, want)
	}
}

func TestHistory_AppendWithLimit(t *testing.T) {
	h := New(200)
	h.Append(Turn{"How are you?", "I'm fine!"})
	h.Append(Turn{"Tell me something.", honey})
	last := Turn{"Interesting! Tell me another thing, please.", light}
	h.Append(last)

	if got := h.Turns(); !reflect.DeepEqual(got, []Turn{last}) {
		t.Errorf("Turns() = %v, want only the last turn", got)
	}
}

func TestHistory_Pinned(t *testing.T) {
	pin := Turn{"sys", "ok"}
	h := New(30, WithPinned(pin))
	h.Append(Turn{"aaaa", "bbbb"})
	h.Append(Turn{"cccc", "dddd"})
	h.Append(Turn{"eeee", "ffff"})

	got := h.Turns()
	if got[0] != pin {
		t.Fatalf("first turn = %v, want pinned", got[0])
	}
	// 5 (pinned) + 8 + 8 + 8 = 29 fits in 30.
	if len(got) != 4 {
		t.Fatalf("expected 4 turns, got %d: %v", len(got), got)
	}
	h.Append(Turn{"gggg", "hhhh"})
	got = h.Turns()
	if got[0] != pin || got[1].Question != "cccc" || got[len(got)-1].Question != "gggg" {
		t.Errorf("unexpected eviction result: %v", got)
	}
}

func TestHistory_Clear(t *testing.T) {
	pin := Turn{"p", "q"}
	h := New(100, WithPinned(pin))
	h.Append(Turn{"a", "b"})
	h.Clear()
	if got := h.Turns(); !reflect.DeepEqual(got, []Turn{pin}) {
		t.Errorf("Turns() after Clear = %v", got)
	}
}

func TestTrim_doesNotModifyInput(t *testing.T) {
	in := []Turn{{"a", "b"}, {"c", "d"}}
	_ = Trim(in, nil, 3, Turn{"e", "f"}, CharCount)
	if in[0].Question != "a" || len(in) != 2 {
		t.Errorf("input modified: %v", in)
	}
}

func TestTrim_property(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		budget := 10 + r.Intn(200)
		var pinned *Turn
		if r.Intn(2) == 0 {
			p := Turn{strings.Repeat("p", r.Intn(20)), strings.Repeat("P", r.Intn(20))}
			pinned = &p
		}
		var turns []Turn
		for i := 0; i < 30; i++ {
			next := Turn{fmt.Sprintf("q%d", i), strings.Repeat("x", r.Intn(120))}
			turns = Trim(turns, pinned, budget, next, CharCount)

			if turns[len(turns)-1] != next {
				t.Fatalf("newest turn not kept")
			}
			total := 0
			if pinned != nil {
				total += pinned.Len(CharCount)
			}
			for j, tr := range turns {
				total += tr.Len(CharCount)
				if j > 0 && questionIndex(turns[j-1]) >= questionIndex(tr) {
					t.Fatalf("order not preserved: %v", turns)
				}
			}
			if total > budget && len(turns) != 1 {
				t.Fatalf("over budget (%d > %d) with %d turns", total, budget, len(turns))
			}
		}
	}
}

func questionIndex(t Turn) int {
	var n int
	fmt.Sscanf(t.Question, "q%d", &n)
	return n
}

func TestFormat(t *testing.T) {
	got := Format([]Turn{{"Hi", "Hello"}, {"How?", "Fine"}})
	want := "Human: Hi\n\nAssistant: Hello\n\nHuman: How?\n\nAssistant: Fine"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
	if Format(nil) != "" {
		t.Error("empty history should format to empty string")
	}
}
