package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the runtime settings file, persisted as JSON. Unlike the
// YAML account config it is rewritten by the application itself when the
// user changes preferences at runtime.
type Settings struct {
	AuthPath             string   `json:"auth_path"`
	PriorityGames        []string `json:"priority_games"`
	ExcludedGames        []string `json:"excluded_games"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
	LogoAnimationEnabled bool     `json:"logo_animation_enabled"`
	ProxyURL             *string  `json:"proxy_url"`
}

// DefaultSettings returns a Settings with all defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		AuthPath:             "auth.json",
		PriorityGames:        []string{},
		ExcludedGames:        []string{},
		NotificationsEnabled: true,
		LogoAnimationEnabled: true,
	}
}

// LoadSettings reads the settings file. A missing file is not an error;
// defaults are returned so the miner can run on first start.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	if s.PriorityGames == nil {
		s.PriorityGames = []string{}
	}
	if s.ExcludedGames == nil {
		s.ExcludedGames = []string{}
	}
	return s, nil
}

// Save writes the settings atomically via a temp file rename.
func (s *Settings) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// FromAccountConfig seeds the runtime settings from the account config
// when no settings file exists yet.
func (s *Settings) FromAccountConfig(cfg *AccountConfig) {
	if len(s.PriorityGames) == 0 && len(cfg.PriorityGames) > 0 {
		s.PriorityGames = append([]string(nil), cfg.PriorityGames...)
	}
	if len(s.ExcludedGames) == 0 && len(cfg.ExcludedGames) > 0 {
		s.ExcludedGames = append([]string(nil), cfg.ExcludedGames...)
	}
	if s.AuthPath == "auth.json" && cfg.AuthPath != "" {
		s.AuthPath = cfg.AuthPath
	}
	if s.ProxyURL == nil && cfg.ProxyURL != "" {
		proxy := cfg.ProxyURL
		s.ProxyURL = &proxy
	}
	s.LogoAnimationEnabled = cfg.LogoAnimationEnabled()
}
