// Package config provides configuration loading and structs for clara.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at
// startup and handed to the components that need it.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Cache     CacheConfig     `yaml:"cache"`
}

// LLMConfig selects the completion provider and the chat history budget.
type LLMConfig struct {
	Provider    string            `yaml:"provider"`
	Name        string            `yaml:"name"`
	Temperature float64           `yaml:"temperature"`
	BaseURL     string            `yaml:"base_url"`
	APIKeyEnv   string            `yaml:"api_key_env"`
	TimeoutSecs int               `yaml:"timeout_secs"`
	ChatHistory ChatHistoryConfig `yaml:"chat_history"`
}

// ChatHistoryConfig bounds the conversation history sent to the condense stage.
type ChatHistoryConfig struct {
	TokenLimit int `yaml:"token_limit"`
	// Unit is "chars" or "tokens" and decides how TokenLimit is measured.
	Unit string `yaml:"unit"`
}

// EmbeddingConfig configures the Ollama embedding client.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// IndexConfig holds ingestion, chunking and retrieval settings.
type IndexConfig struct {
	Backend      string   `yaml:"backend"`
	SearchType   string   `yaml:"search_type"`
	K            int      `yaml:"k"`
	FetchK       int      `yaml:"fetch_k"`
	MMRLambda    float64  `yaml:"mmr_lambda"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Workers      int      `yaml:"workers"`
	Patterns     []string `yaml:"patterns"`
}

// CacheConfig overrides where persisted indexes live.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// Provider endpoints used when llm.base_url is left empty.
const (
	OllamaBaseURL = "http://localhost:11434"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// ProviderBaseURL returns the default endpoint for an LLM provider.
func ProviderBaseURL(provider string) string {
	if provider == "openai" {
		return OpenAIBaseURL
	}
	return OllamaBaseURL
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			Name:        "qwen3:8b",
			Temperature: 0,
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 300,
			ChatHistory: ChatHistoryConfig{
				TokenLimit: 3500,
				Unit:       "chars",
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL: OllamaBaseURL,
			Model:   "nomic-embed-text",
		},
		Index: IndexConfig{
			Backend:      "sqlite",
			SearchType:   "mmr",
			K:            6,
			FetchK:       20,
			MMRLambda:    0.5,
			ChunkSize:    3000,
			ChunkOverlap: 200,
			Workers:      runtime.NumCPU(),
			Patterns:     append([]string(nil), DefaultPatterns...),
		},
	}
}

// Load reads the YAML file at path and merges it over the defaults. Keys
// missing from the file keep their default value. A missing file is not an
// error. llm.base_url follows llm.provider unless set.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	// Unmarshalling onto a populated struct only overwrites keys present in
	// the document; sequences are replaced wholesale.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns $XDG_CONFIG_HOME/clara/config.yaml, falling back to
// ~/.config/clara/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "clara", "config.yaml"), nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return &ConfigError{Field: "llm.provider", Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider)}
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = ProviderBaseURL(c.LLM.Provider)
	}
	switch c.LLM.ChatHistory.Unit {
	case "chars", "tokens":
	default:
		return &ConfigError{Field: "llm.chat_history.unit", Message: fmt.Sprintf("unknown unit %q", c.LLM.ChatHistory.Unit)}
	}
	if c.LLM.ChatHistory.TokenLimit <= 0 {
		return &ConfigError{Field: "llm.chat_history.token_limit", Message: "must be positive"}
	}
	switch c.Index.Backend {
	case "sqlite", "memory":
	default:
		return &ConfigError{Field: "index.backend", Message: fmt.Sprintf("unknown backend %q", c.Index.Backend)}
	}
	switch c.Index.SearchType {
	case "similarity", "mmr":
	default:
		return &ConfigError{Field: "index.search_type", Message: fmt.Sprintf("unknown search type %q", c.Index.SearchType)}
	}
	if c.Index.K <= 0 {
		return &ConfigError{Field: "index.k", Message: "must be positive"}
	}
	if c.Index.ChunkSize <= 0 {
		return &ConfigError{Field: "index.chunk_size", Message: "must be positive"}
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return &ConfigError{Field: "index.chunk_overlap", Message: "must be in [0, chunk_size)"}
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = runtime.NumCPU()
	}
	if c.Index.FetchK < c.Index.K {
		c.Index.FetchK = c.Index.K
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
