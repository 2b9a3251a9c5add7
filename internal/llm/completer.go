package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"clara/internal/config"
	"clara/internal/logging"
)

// Completer renders a prompt template and sends it to a chat provider.
type Completer struct {
	chat   Chatter
	logger *zap.Logger
}

// NewCompleter wraps chat.
func NewCompleter(chat Chatter, logger *zap.Logger) *Completer {
	return &Completer{chat: chat, logger: logging.OrNop(logger)}
}

// New builds a Completer for the configured provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (*Completer, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.ProviderBaseURL(cfg.Provider)
	}
	var chat Chatter
	switch cfg.Provider {
	case "ollama", "":
		chat = NewOllamaChat(cfg.BaseURL, cfg.Name, cfg.Temperature, timeout)
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider openai needs an API key in $%s", cfg.APIKeyEnv)
		}
		chat = NewOpenAIChat(cfg.BaseURL, key, cfg.Name, cfg.Temperature, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return NewCompleter(chat, logger), nil
}

// Complete renders templateID with vars and returns the model's reply.
func (c *Completer) Complete(ctx context.Context, templateID string, vars map[string]string) (string, error) {
	prompt, err := Render(templateID, vars)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := c.chat.Generate(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	c.logger.Debug("completion",
		zap.String("template", templateID),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}
