package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"clara/internal/chunker"
	"clara/internal/history"
	"clara/internal/llm"
	"clara/internal/vectorstore"
)

type call struct {
	template string
	vars     map[string]string
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []call
	// fail makes the named template return err.
	fail map[string]error
	// block makes the named template wait for ctx cancellation.
	block string
}

func (f *fakeCompleter) Complete(ctx context.Context, templateID string, vars map[string]string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{templateID, vars})
	f.mu.Unlock()
	if templateID == f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.fail[templateID]; err != nil {
		return "", err
	}
	switch templateID {
	case llm.TemplateCondense:
		return "standalone: " + vars["question"], nil
	default:
		return "answer to " + vars["question"], nil
	}
}

type fakeRetriever struct {
	query  string
	k      int
	mode   vectorstore.SearchMode
	chunks []chunker.Chunk
	err    error
}

func (f *fakeRetriever) SimilaritySearch(ctx context.Context, query string, k int, mode vectorstore.SearchMode) ([]chunker.Chunk, error) {
	f.query, f.k, f.mode = query, k, mode
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func sources() []chunker.Chunk {
	return []chunker.Chunk{
		{Content: "def hello():\n    pass", SourcePath: "a.py"},
		{Content: "func main() {}", SourcePath: "main.go"},
	}
}

func TestAsk(t *testing.T) {
	c := &fakeCompleter{}
	r := &fakeRetriever{chunks: sources()}
	h := history.New(3500)
	o := New(c, r, h, Options{K: 4, Mode: vectorstore.MMR}, nil)

	res, err := o.Ask(context.Background(), "what is hello?")
	if err != nil {
		t.Fatal(err)
	}

	if len(c.calls) != 2 || c.calls[0].template != llm.TemplateCondense || c.calls[1].template != llm.TemplateAnswer {
		t.Fatalf("unexpected completion calls %+v", c.calls)
	}
	if c.calls[0].vars["chat_history"] != "" {
		t.Errorf("first query should have empty history, got %q", c.calls[0].vars["chat_history"])
	}
	if r.query != "standalone: what is hello?" || r.k != 4 || r.mode != vectorstore.MMR {
		t.Errorf("retriever got query=%q k=%d mode=%v", r.query, r.k, r.mode)
	}
	if c.calls[1].vars["question"] != "standalone: what is hello?" {
		t.Errorf("answer stage should use the condensed question, got %q", c.calls[1].vars["question"])
	}
	wantCtx := "def hello():\n    pass\nSOURCE: a.py\n---\nfunc main() {}\nSOURCE: main.go\n"
	if c.calls[1].vars["context"] != wantCtx {
		t.Errorf("context = %q, want %q", c.calls[1].vars["context"], wantCtx)
	}

	if res.Question != "what is hello?" || res.Answer != "answer to standalone: what is hello?" || len(res.Sources) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	turns := h.Turns()
	if len(turns) != 1 || turns[0].Question != "what is hello?" || turns[0].Answer != res.Answer {
		t.Errorf("history = %+v", turns)
	}
	if o.Last() != res {
		t.Error("Last should return the latest result")
	}

	// The second query sees the first turn.
	if _, err := o.Ask(context.Background(), "and main?"); err != nil {
		t.Fatal(err)
	}
	if got := c.calls[2].vars["chat_history"]; !strings.HasPrefix(got, "Human: what is hello?\n\nAssistant: answer to") {
		t.Errorf("chat history = %q", got)
	}
}

func TestAsk_failuresLeaveHistoryUntouched(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		c    *fakeCompleter
		r    *fakeRetriever
		want error
	}{
		{"condense", &fakeCompleter{fail: map[string]error{llm.TemplateCondense: boom}}, &fakeRetriever{}, ErrGeneration},
		{"retrieve", &fakeCompleter{}, &fakeRetriever{err: boom}, ErrRetrieval},
		{"answer", &fakeCompleter{fail: map[string]error{llm.TemplateAnswer: llm.ErrInvalidRequest}}, &fakeRetriever{}, ErrGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := history.New(3500)
			h.Append(history.Turn{Question: "earlier", Answer: "yes"})
			o := New(tt.c, tt.r, h, Options{}, nil)

			_, err := o.Ask(context.Background(), "q")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(h.Turns()) != 1 {
				t.Errorf("history mutated: %+v", h.Turns())
			}
			if o.Last() != nil {
				t.Error("failed query must not become Last")
			}

			// The session keeps working afterwards.
			tt.c.fail = nil
			tt.r.err = nil
			if _, err := o.Ask(context.Background(), "again"); err != nil {
				t.Errorf("follow-up query failed: %v", err)
			}
			if len(h.Turns()) != 2 {
				t.Errorf("follow-up not recorded: %+v", h.Turns())
			}
		})
	}
}

func TestAsk_invalidRequestIsVisible(t *testing.T) {
	c := &fakeCompleter{fail: map[string]error{llm.TemplateAnswer: llm.ErrInvalidRequest}}
	o := New(c, &fakeRetriever{}, history.New(100), Options{}, nil)
	_, err := o.Ask(context.Background(), "q")
	if !errors.Is(err, llm.ErrInvalidRequest) {
		t.Errorf("provider error should stay inspectable, got %v", err)
	}
}

func TestAsk_cancelled(t *testing.T) {
	c := &fakeCompleter{block: llm.TemplateAnswer}
	h := history.New(100)
	o := New(c, &fakeRetriever{chunks: sources()}, h, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Ask(ctx, "q")
		done <- err
	}()
	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrGeneration) {
		t.Error("cancellation should not be reported as a generation failure")
	}
	if len(h.Turns()) != 0 {
		t.Errorf("history mutated on cancel: %+v", h.Turns())
	}
}

func TestAsk_serialised(t *testing.T) {
	c := &fakeCompleter{}
	h := history.New(1 << 20)
	o := New(c, &fakeRetriever{}, h, Options{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Ask(context.Background(), "q"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Each query issues condense then answer; serialisation keeps the pairs adjacent.
	for i := 0; i < len(c.calls); i += 2 {
		if c.calls[i].template != llm.TemplateCondense || c.calls[i+1].template != llm.TemplateAnswer {
			t.Fatalf("interleaved calls at %d: %s, %s", i, c.calls[i].template, c.calls[i+1].template)
		}
	}
	if len(h.Turns()) != 8 {
		t.Errorf("expected 8 turns, got %d", len(h.Turns()))
	}
}

func TestBuildContext(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("empty context = %q", got)
	}
	got := BuildContext([]chunker.Chunk{{Content: "x", SourcePath: "a"}})
	if got != "x\nSOURCE: a\n" {
		t.Errorf("single chunk = %q", got)
	}
}
