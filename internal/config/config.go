// Package config handles loading, parsing, and validating the YAML account
// configuration and the JSON runtime settings file. Secrets can be overlaid
// with environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wrosek/twitch-drops-go/internal/utils"
)

// LoadAccountConfig loads the account configuration from a YAML file,
// then overlays environment variables for secrets. The account username
// is derived from the config filename.
func LoadAccountConfig(path string) (*AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg AccountConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	cfg.Username = strings.TrimSuffix(filename, ext)

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AccountConfig) {
	if cfg.AuthPath == "" {
		cfg.AuthPath = "auth.json"
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "settings.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// getEnv looks up an environment variable with a per-account suffix.
func getEnv(key, username string) string {
	return os.Getenv(key + "_" + strings.ToUpper(username))
}

// applyEnvOverrides overlays environment variables for secrets.
// Every variable requires the username suffix: KEY_<UPPERCASE_USERNAME>
func applyEnvOverrides(cfg *AccountConfig) {
	u := cfg.Username

	if v := getEnv("PROXY_URL", u); v != "" {
		cfg.ProxyURL = v
	}

	if cfg.Notifications.Telegram != nil {
		if v := getEnv("TELEGRAM_TOKEN", u); v != "" {
			cfg.Notifications.Telegram.Token = v
		}
		if v := getEnv("TELEGRAM_CHAT_ID", u); v != "" {
			cfg.Notifications.Telegram.ChatID = v
		}
	}

	if cfg.Notifications.Discord != nil {
		if v := getEnv("DISCORD_WEBHOOK", u); v != "" {
			cfg.Notifications.Discord.WebhookURL = v
		}
	}

	if cfg.Notifications.Webhook != nil {
		if v := getEnv("WEBHOOK_URL", u); v != "" {
			cfg.Notifications.Webhook.Endpoint = v
		}
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *AccountConfig) error {
	if cfg.Username == "" {
		return fmt.Errorf("username is required")
	}

	if len(cfg.PriorityGames) == 0 {
		return fmt.Errorf("account %s: priority_games must list at least one game", cfg.Username)
	}

	if cfg.ProxyURL != "" && !utils.ValidProxyURL(cfg.ProxyURL) {
		return fmt.Errorf("account %s: invalid proxy_url %s (use http://, https:// or socks5://)",
			cfg.Username, utils.MaskProxyURL(cfg.ProxyURL))
	}

	if cfg.Notifications.Telegram != nil && cfg.Notifications.Telegram.Enabled {
		if cfg.Notifications.Telegram.Token == "" || cfg.Notifications.Telegram.ChatID == "" {
			u := strings.ToUpper(cfg.Username)
			return fmt.Errorf("account %s: telegram enabled but token or chat_id not set (use env vars TELEGRAM_TOKEN_%s and TELEGRAM_CHAT_ID_%s)", cfg.Username, u, u)
		}
	}

	if cfg.Notifications.Discord != nil && cfg.Notifications.Discord.Enabled {
		if cfg.Notifications.Discord.WebhookURL == "" {
			return fmt.Errorf("account %s: discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK_%s)", cfg.Username, strings.ToUpper(cfg.Username))
		}
	}

	return nil
}
