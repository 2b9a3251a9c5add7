package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"clara/internal/config"
)

func TestRender(t *testing.T) {
	out, err := Render(TemplateCondense, map[string]string{
		"chat_history": "Human: hi\n\nAssistant: hello",
		"question":     "what does main do?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Human: hi\n\nAssistant: hello\nFollow Up Input: what does main do?") {
		t.Errorf("unexpected prompt:\n%s", out)
	}

	out, err = Render(TemplateAnswer, map[string]string{"context": "x = 1\nSOURCE: a.py\n", "question": "q"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "SOURCE: a.py") {
		t.Errorf("context missing from prompt:\n%s", out)
	}
}

func TestRender_errors(t *testing.T) {
	if _, err := Render("nope", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("unknown template: %v", err)
	}
	if _, err := Render(TemplateAnswer, map[string]string{"question": "q"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing variable: %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/chat" || req.Stream || req.Model != "qwen3:8b" {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "echo: " + req.Messages[0].Content}})
	}))
	defer srv.Close()

	c := NewCompleter(NewOllamaChat(srv.URL, "qwen3:8b", 0, 0), nil)
	out, err := c.Complete(context.Background(), TemplateCondense, map[string]string{"chat_history": "", "question": "why?"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "echo: Given the following conversation") {
		t.Errorf("unexpected reply %q", out)
	}
}

func TestOllamaChat_invalidRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaChat(srv.URL, "missing", 0, 0).Generate(context.Background(), []Message{{Role: "user", Content: "x"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestOllamaChat_serverErrorIsNotInvalidRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaChat(srv.URL, "m", 0, 0).Generate(context.Background(), nil)
	if err == nil || errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected a plain error, got %v", err)
	}
}

func TestOpenAIChat_retriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAIChat(srv.URL, "sk-test", "gpt", 0, 0).Generate(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "done" || calls.Load() != 2 {
		t.Errorf("out=%q calls=%d", out, calls.Load())
	}
}

func TestOpenAIChat_badRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"context length exceeded"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewOpenAIChat(srv.URL, "", "gpt", 0, 0).Generate(context.Background(), nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("400 should not be retried, got %d calls", calls.Load())
	}
}

func TestOpenAIChat_cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOpenAIChat(srv.URL, "", "gpt", 0, 0).Generate(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_defaultsBaseURLPerProvider(t *testing.T) {
	t.Setenv("CLARA_TEST_KEY", "sk-test")
	c, err := New(config.LLMConfig{Provider: "openai", Name: "gpt-3.5-turbo", APIKeyEnv: "CLARA_TEST_KEY"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	oa, ok := c.chat.(*OpenAIChat)
	if !ok {
		t.Fatalf("chat is %T, want *OpenAIChat", c.chat)
	}
	if oa.baseURL != config.OpenAIBaseURL {
		t.Errorf("baseURL = %q, want %q", oa.baseURL, config.OpenAIBaseURL)
	}
}
