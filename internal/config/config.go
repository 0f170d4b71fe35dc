package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
//
// Environment Variables:
//
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - UI_ENABLED: serve the static page (default: false)
// - UI_STATIC_DIR: static page directory (default: /app/web)
//
// Backend and providers:
// - BACKEND_BASE_URL: dubbing backend base address (optional)
// - BACKEND_TIMEOUT: backend request timeout in seconds (default: 30)
// - GOOGLE_TRANSLATE_API_KEY: direct translate fallback key (optional)
// - GOOGLE_TTS_API_KEY: direct speech fallback key (optional)
// - LLM_API_KEY / LLM_API_URL / LLM_MODEL / LLM_TIMEOUT: direct polish fallback
//
// Dubbing:
// - DUB_TARGET_LANGUAGE: default target language (default: tr)
// - POLISH_ENABLED: run the polish stage (default: true)
// - VOICE_TABLE_FILE: YAML voice overrides (optional)
// - DUB_WORKERS: concurrent segment productions (default: 4)
//
// Storage:
// - DB_PATH: subtitle cache database, empty disables it (default: /app/data/syncdub.db)
// - SUBTITLE_CACHE_TTL_HOURS: cached subtitle lifetime (default: 24)
// - CACHE_SWEEP_CRON: cache sweep schedule (default: 0 * * * *)
type Config struct {
	HTTP    HTTPConfig    `json:"http"`
	Backend BackendConfig `json:"backend"`
	LLM     LLMConfig     `json:"llm"`
	Dub     DubConfig     `json:"dub"`
	Storage StorageConfig `json:"storage"`
}

// HTTPConfig holds the listener and static UI settings
type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIEnabled   bool   `json:"ui_enabled"`
	UIStaticDir string `json:"ui_static_dir"`
}

// BackendConfig holds the remote dubbing backend and the direct provider keys
type BackendConfig struct {
	BaseURL         string `json:"base_url"`
	Timeout         int    `json:"timeout"`
	TranslateAPIKey string `json:"-"`
	TTSAPIKey       string `json:"-"`
}

// LLMConfig holds the configuration for the direct polish client.
// Any OpenAI compatible endpoint works.
type LLMConfig struct {
	APIKey  string `json:"-"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// Enabled reports whether a direct polish client can be built.
func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type DubConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
	PolishEnabled  bool         `json:"polish_enabled"`
	VoiceTableFile string       `json:"voice_table_file"`
	Workers        int          `json:"workers"`
}

type StorageConfig struct {
	DBPath         string `json:"db_path"`
	CacheTTLHours  int    `json:"cache_ttl_hours"`
	CacheSweepCron string `json:"cache_sweep_cron"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	target, err := language.Parse(getEnvString("DUB_TARGET_LANGUAGE", "tr"))
	if err != nil {
		return nil, fmt.Errorf("invalid DUB_TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIEnabled:   getEnvBool("UI_ENABLED", false),
			UIStaticDir: getEnvString("UI_STATIC_DIR", "/app/web"),
		},
		Backend: BackendConfig{
			BaseURL:         strings.TrimRight(getEnvString("BACKEND_BASE_URL", ""), "/"),
			Timeout:         getEnvInt("BACKEND_TIMEOUT", 30),
			TranslateAPIKey: getEnvString("GOOGLE_TRANSLATE_API_KEY", ""),
			TTSAPIKey:       getEnvString("GOOGLE_TTS_API_KEY", ""),
		},
		LLM: LLMConfig{
			APIKey:  getEnvString("LLM_API_KEY", ""),
			APIURL:  getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:   getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			Timeout: getEnvInt("LLM_TIMEOUT", 30),
		},
		Dub: DubConfig{
			TargetLanguage: target,
			PolishEnabled:  getEnvBool("POLISH_ENABLED", true),
			VoiceTableFile: getEnvString("VOICE_TABLE_FILE", ""),
			Workers:        getEnvInt("DUB_WORKERS", 4),
		},
		Storage: StorageConfig{
			DBPath:         os.Getenv("DB_PATH"),
			CacheTTLHours:  getEnvInt("SUBTITLE_CACHE_TTL_HOURS", 24),
			CacheSweepCron: getEnvString("CACHE_SWEEP_CRON", "0 * * * *"),
		},
	}
	if _, set := os.LookupEnv("DB_PATH"); !set {
		config.Storage.DBPath = "/app/data/syncdub.db"
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all configuration values are usable
func (c *Config) validate() error {
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.Backend.BaseURL != "" &&
		!strings.HasPrefix(c.Backend.BaseURL, "http://") &&
		!strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("BACKEND_BASE_URL must be an http(s) URL")
	}
	if c.Dub.Workers <= 0 {
		return fmt.Errorf("DUB_WORKERS must be positive")
	}
	if c.Storage.CacheTTLHours <= 0 {
		return fmt.Errorf("SUBTITLE_CACHE_TTL_HOURS must be positive")
	}
	if _, err := cron.ParseStandard(c.Storage.CacheSweepCron); err != nil {
		return fmt.Errorf("invalid CACHE_SWEEP_CRON: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
