package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Ollama    OllamaConfig
	Proxy     ProxyConfig
	Log       LogConfig
	Assistant AssistantConfig
	FAQ       FAQConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	// Provider is "ollama" or "openrouter".
	Provider         string
	OpenRouterAPIKey string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type ProxyConfig struct {
	DefaultModel string
}

type LogConfig struct {
	Level string
}

type AssistantConfig struct {
	Persona           string
	HistoryLimit      int
	PromptTurns       int
	GenerationTimeout string
	MaxMessageChars   int
	RatePerMinute     int
	Learning          LearningConfig
}

type LearningConfig struct {
	Enabled bool
	EveryN  int
}

type FAQConfig struct {
	InboxDir          string
	// DocumentsDir confines local extract references. InboxDir is also
	// allowed when set.
	DocumentsDir      string
	MaxDocumentChars  int
	ExtractionTimeout string
}

// Timeout returns ExtractionTimeout parsed, or 2m when it is unset or invalid.
func (f FAQConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(f.ExtractionTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// Timeout returns GenerationTimeout parsed, or 30s when it is unset or invalid.
func (a AssistantConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(a.GenerationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider: "ollama",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Proxy: ProxyConfig{
			DefaultModel: "anthropic/claude-sonnet-4",
		},
		Log: LogConfig{
			Level: "info",
		},
		Assistant: AssistantConfig{
			HistoryLimit:      10,
			PromptTurns:       5,
			GenerationTimeout: "30s",
			MaxMessageChars:   4000,
			RatePerMinute:     20,
			Learning: LearningConfig{
				EveryN: 1,
			},
		},
		FAQ: FAQConfig{
			MaxDocumentChars:  60000,
			ExtractionTimeout: "2m",
		},
	}
}

// Load reads configuration from the TOML file at
// $XDG_CONFIG_HOME/deskmate/config.toml, then applies DESKMATE_* environment
// overrides. The OpenRouter API key falls back to the secrets file.
func Load() (Config, error) {
	return loadFromPath(configFilePath(), NewSecretStore())
}

// keychain abstracts secret lookup for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadFromPath(path string, kc keychain) (Config, error) {
	cfg := defaults()

	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.OpenRouterAPIKey == "" {
		if key, err := kc.Get(secretService, "openrouter_api_key"); err == nil && key != "" {
			cfg.LLM.OpenRouterAPIKey = key
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.LLM.Provider {
	case "ollama":
	case "openrouter":
		if cfg.LLM.OpenRouterAPIKey == "" {
			return fmt.Errorf("missing required config: OpenRouter API key. " +
				"Set it via environment variable DESKMATE_OPENROUTER_API_KEY " +
				"or use llm.provider = \"ollama\"")
		}
	default:
		return fmt.Errorf("invalid llm.provider %q: want \"ollama\" or \"openrouter\"", cfg.LLM.Provider)
	}

	if _, err := time.ParseDuration(cfg.Assistant.GenerationTimeout); err != nil {
		return fmt.Errorf("invalid assistant.generation_timeout %q: %w", cfg.Assistant.GenerationTimeout, err)
	}
	if _, err := time.ParseDuration(cfg.FAQ.ExtractionTimeout); err != nil {
		return fmt.Errorf("invalid faq.extraction_timeout %q: %w", cfg.FAQ.ExtractionTimeout, err)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "deskmate-data"
		}
	}
	return filepath.Join(dir, "deskmate")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "deskmate", "config.toml")
}
