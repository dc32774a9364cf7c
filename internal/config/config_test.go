package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAccountConfig(t *testing.T) {
	path := writeConfig(t, "miner.yaml", `
priority_games:
  - Rust
  - Sea of Thieves
excluded_games:
  - Fortnite
proxy_url: socks5://127.0.0.1:1080
log:
  level: debug
notifications:
  telegram:
    enabled: true
    token: tok
    chat_id: "123"
    events: [DROP_CLAIM]
`)

	cfg, err := LoadAccountConfig(path)
	if err != nil {
		t.Fatalf("LoadAccountConfig: %v", err)
	}
	if cfg.Username != "miner" {
		t.Errorf("Username = %q", cfg.Username)
	}
	if !reflect.DeepEqual(cfg.PriorityGames, []string{"Rust", "Sea of Thieves"}) {
		t.Errorf("PriorityGames = %v", cfg.PriorityGames)
	}
	if cfg.AuthPath != "auth.json" || cfg.SettingsPath != "settings.json" {
		t.Errorf("defaults = %q/%q", cfg.AuthPath, cfg.SettingsPath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN_MINER", "env-token")
	t.Setenv("PROXY_URL_MINER", "http://proxy:8080")

	path := writeConfig(t, "miner.yaml", `
priority_games: [Rust]
notifications:
  telegram:
    enabled: true
    chat_id: "123"
    events: [DROP_CLAIM]
`)

	cfg, err := LoadAccountConfig(path)
	if err != nil {
		t.Fatalf("LoadAccountConfig: %v", err)
	}
	if cfg.Notifications.Telegram.Token != "env-token" {
		t.Errorf("Token = %q", cfg.Notifications.Telegram.Token)
	}
	if cfg.ProxyURL != "http://proxy:8080" {
		t.Errorf("ProxyURL = %q", cfg.ProxyURL)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  AccountConfig
	}{
		{
			name: "no priority games",
			cfg:  AccountConfig{Username: "miner"},
		},
		{
			name: "bad proxy scheme",
			cfg: AccountConfig{
				Username:      "miner",
				PriorityGames: []string{"Rust"},
				ProxyURL:      "ftp://proxy:21",
			},
		},
		{
			name: "telegram without token",
			cfg: AccountConfig{
				Username:      "miner",
				PriorityGames: []string{"Rust"},
				Notifications: NotificationsConfig{
					Telegram: &TelegramConfig{Enabled: true},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(&tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	proxy := "socks5://127.0.0.1:1080"
	s := &Settings{
		AuthPath:             "custom-auth.json",
		PriorityGames:        []string{"Rust"},
		ExcludedGames:        []string{"Fortnite"},
		NotificationsEnabled: false,
		LogoAnimationEnabled: true,
		ProxyURL:             &proxy,
	}

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !reflect.DeepEqual(loaded, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, s)
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !s.NotificationsEnabled || !s.LogoAnimationEnabled {
		t.Errorf("defaults = %+v", s)
	}
	if s.AuthPath != "auth.json" {
		t.Errorf("AuthPath = %q", s.AuthPath)
	}
}

func TestSettingsSeededFromAccountConfig(t *testing.T) {
	cfg := &AccountConfig{
		Username:      "miner",
		AuthPath:      "data/auth.json",
		PriorityGames: []string{"Rust"},
		ProxyURL:      "http://proxy:8080",
	}
	s := DefaultSettings()
	s.FromAccountConfig(cfg)

	if s.AuthPath != "data/auth.json" {
		t.Errorf("AuthPath = %q", s.AuthPath)
	}
	if len(s.PriorityGames) != 1 || s.PriorityGames[0] != "Rust" {
		t.Errorf("PriorityGames = %v", s.PriorityGames)
	}
	if s.ProxyURL == nil || *s.ProxyURL != "http://proxy:8080" {
		t.Errorf("ProxyURL = %v", s.ProxyURL)
	}
}
