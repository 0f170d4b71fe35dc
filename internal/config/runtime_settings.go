package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings are the user editable settings applied on the next session start.
type RuntimeSettings struct {
	BackendBaseURL  string `json:"backend_base_url"`
	TranslateAPIKey string `json:"translate_api_key"`
	TTSAPIKey       string `json:"tts_api_key"`
	TargetLanguage  string `json:"target_language"`
	PolishEnabled   bool   `json:"polish_enabled"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if base := strings.TrimSpace(s.BackendBaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid backend_base_url: %q", s.BackendBaseURL)
		}
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language: %w", err)
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		BackendBaseURL:  c.Backend.BaseURL,
		TranslateAPIKey: c.Backend.TranslateAPIKey,
		TTSAPIKey:       c.Backend.TTSAPIKey,
		TargetLanguage:  c.Dub.TargetLanguage.String(),
		PolishEnabled:   c.Dub.PolishEnabled,
	}
}

// WithRuntimeSettings overrides env values with non-empty settings.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		c.Apply(settings)
	}
}

// Apply copies settings over the config. Empty strings keep the current value.
func (c *Config) Apply(settings RuntimeSettings) {
	if base := strings.TrimSpace(settings.BackendBaseURL); base != "" {
		c.Backend.BaseURL = strings.TrimRight(base, "/")
	}
	if strings.TrimSpace(settings.TranslateAPIKey) != "" {
		c.Backend.TranslateAPIKey = settings.TranslateAPIKey
	}
	if strings.TrimSpace(settings.TTSAPIKey) != "" {
		c.Backend.TTSAPIKey = settings.TTSAPIKey
	}
	if tag, err := language.Parse(settings.TargetLanguage); err == nil {
		c.Dub.TargetLanguage = tag
	}
	c.Dub.PolishEnabled = settings.PolishEnabled
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore keeps the current settings and persists every update.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	next.BackendBaseURL = strings.TrimRight(strings.TrimSpace(next.BackendBaseURL), "/")
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
