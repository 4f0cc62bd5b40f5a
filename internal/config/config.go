package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pocketlm/core/internal/model/llm"
)

// Config aggregates every tunable of the service.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Runtime   RuntimeConfig
	Templates TemplateConfig
	History   HistoryConfig
	Sampling  SamplingConfig
	Limits    LimitConfig

	AssistantName string `env:"ASSISTANT_NAME" envDefault:"Assistant"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured level name onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Addr normalizes PORT into a listen address. Plain ports ("8080") and
// full addresses (":8080", "127.0.0.1:8080") are both accepted.
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port, nil
	}
	if port == "" || strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", c.Port)
	}
	return ":" + port, nil
}

// StorageConfig selects the transcript store backend.
type StorageConfig struct {
	// DBPath points at the sqlite transcript database. Empty keeps
	// sessions in memory.
	DBPath string `env:"CHAT_DB_PATH"`
}

// RuntimeConfig describes the local inference runtime.
type RuntimeConfig struct {
	BaseURL string        `env:"RUNTIME_BASE_URL" envDefault:"http://127.0.0.1:8081"`
	Timeout time.Duration `env:"RUNTIME_TIMEOUT" envDefault:"2m"`
	Stream  bool          `env:"RUNTIME_STREAM" envDefault:"true"`
}

// TemplateConfig points at optional prompt template overrides.
type TemplateConfig struct {
	OverlayPath string `env:"TEMPLATE_OVERLAY_PATH"`
}

// HistoryConfig tunes transcript rendering.
type HistoryConfig struct {
	ShowUserNames bool   `env:"HISTORY_SHOW_USER_NAMES" envDefault:"true"`
	DateFormat    string `env:"HISTORY_DATE_FORMAT"`
	TimeFormat    string `env:"HISTORY_TIME_FORMAT"`
}

// SamplingConfig carries server-wide sampling overrides. Unset values
// defer to the per-model defaults.
type SamplingConfig struct {
	Temperature *float64 `env:"GEN_TEMPERATURE"`
	TopP        *float64 `env:"GEN_TOP_P"`
	TopK        *int     `env:"GEN_TOP_K"`
	MaxTokens   *int     `env:"GEN_MAX_TOKENS"`
}

// Options converts the overrides into generation options.
func (c SamplingConfig) Options() llm.GenOptions {
	return llm.GenOptions{
		Temperature: c.Temperature,
		TopP:        c.TopP,
		TopK:        c.TopK,
		MaxTokens:   c.MaxTokens,
	}
}

// LimitConfig tunes per-session request throttling.
type LimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
}
