package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DESKMATE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "DESKMATE_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DESKMATE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "llm.provider", typ: kString, env: "DESKMATE_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.openrouter_api_key", typ: kString, env: "DESKMATE_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenRouterAPIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "DESKMATE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "DESKMATE_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "proxy.default_model", typ: kString, env: "DESKMATE_PROXY_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.DefaultModel },
	},
	{
		key: "log.level", typ: kString, env: "DESKMATE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "assistant.persona", typ: kString, env: "DESKMATE_ASSISTANT_PERSONA",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Persona = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Persona },
	},
	{
		key: "assistant.history_limit", typ: kInt, env: "DESKMATE_ASSISTANT_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.HistoryLimit },
	},
	{
		key: "assistant.prompt_turns", typ: kInt, env: "DESKMATE_ASSISTANT_PROMPT_TURNS",
		apply:   func(cfg *Config, v any) { cfg.Assistant.PromptTurns = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.PromptTurns },
	},
	{
		key: "assistant.generation_timeout", typ: kDuration, env: "DESKMATE_ASSISTANT_GENERATION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.GenerationTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.GenerationTimeout },
	},
	{
		key: "assistant.max_message_chars", typ: kInt, env: "DESKMATE_ASSISTANT_MAX_MESSAGE_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Assistant.MaxMessageChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.MaxMessageChars },
	},
	{
		key: "assistant.rate_per_minute", typ: kInt, env: "DESKMATE_ASSISTANT_RATE_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Assistant.RatePerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.RatePerMinute },
	},
	{
		key: "assistant.learning.enabled", typ: kBool, env: "DESKMATE_ASSISTANT_LEARNING_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Learning.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Assistant.Learning.Enabled },
	},
	{
		key: "assistant.learning.every_n", typ: kInt, env: "DESKMATE_ASSISTANT_LEARNING_EVERY_N",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Learning.EveryN = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.Learning.EveryN },
	},
	{
		key: "faq.inbox_dir", typ: kString, env: "DESKMATE_FAQ_INBOX_DIR",
		apply:   func(cfg *Config, v any) { cfg.FAQ.InboxDir = v.(string) },
		extract: func(cfg Config) any { return cfg.FAQ.InboxDir },
	},
	{
		key: "faq.documents_dir", typ: kString, env: "DESKMATE_FAQ_DOCUMENTS_DIR",
		apply:   func(cfg *Config, v any) { cfg.FAQ.DocumentsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.FAQ.DocumentsDir },
	},
	{
		key: "faq.extraction_timeout", typ: kDuration, env: "DESKMATE_FAQ_EXTRACTION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.FAQ.ExtractionTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.FAQ.ExtractionTimeout },
	},
	{
		key: "faq.max_document_chars", typ: kInt, env: "DESKMATE_FAQ_MAX_DOCUMENT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.FAQ.MaxDocumentChars = v.(int) },
		extract: func(cfg Config) any { return cfg.FAQ.MaxDocumentChars },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					slog.Warn("could not parse bool from config key, using default", "key", s.key, "value", v, "error", err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString, kDuration:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env var, using default", "env", s.env, "value", raw, "error", err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				slog.Warn("could not parse bool from env var, using default", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
