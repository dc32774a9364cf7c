package config

// AccountConfig represents the full configuration for the miner account.
// It is loaded from a YAML file and optionally overlaid with environment
// variables.
type AccountConfig struct {
	Username string `yaml:"-"`

	Enabled *bool `yaml:"enabled,omitempty"`

	// AuthPath is where the session blob is persisted.
	AuthPath string `yaml:"auth_path"`

	// SettingsPath is where runtime settings are persisted.
	SettingsPath string `yaml:"settings_path"`

	// PriorityGames is the ordered list of game display names to mine,
	// highest priority first.
	PriorityGames []string `yaml:"priority_games"`

	// ExcludedGames lists game display names that are never mined.
	ExcludedGames []string `yaml:"excluded_games"`

	// ProxyURL routes all platform traffic through a proxy when set.
	// Supported schemes: http, https, socks5.
	ProxyURL string `yaml:"proxy_url,omitempty"`

	Features FeaturesConfig `yaml:"features"`

	Log LogConfig `yaml:"log"`

	Notifications NotificationsConfig `yaml:"notifications"`
}

// FeaturesConfig holds global feature toggles.
type FeaturesConfig struct {
	EnableAnalytics bool   `yaml:"enable_analytics"`
	AnalyticsAddr   string `yaml:"analytics_addr"`
	LogoAnimation   *bool  `yaml:"logo_animation,omitempty"`
}

// LogConfig holds logging settings. Dir enables an additional debug-level
// file handler writing <username>.log under the given directory.
type LogConfig struct {
	Level   string `yaml:"level"`
	Colored *bool  `yaml:"colored,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// NotificationsConfig holds all notification provider configurations.
type NotificationsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Webhook  *WebhookConfig  `yaml:"webhook,omitempty"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Token               string   `yaml:"token,omitempty"`
	ChatID              string   `yaml:"chat_id,omitempty"`
	Events              []string `yaml:"events"`
	DisableNotification bool     `yaml:"disable_notification"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}

// IsEnabled returns whether this account is enabled. An unset Enabled
// field defaults to true.
func (ac *AccountConfig) IsEnabled() bool {
	if ac.Enabled == nil {
		return true
	}
	return *ac.Enabled
}

// LogoAnimationEnabled returns the logo animation toggle, defaulting to
// true when unset.
func (ac *AccountConfig) LogoAnimationEnabled() bool {
	if ac.Features.LogoAnimation == nil {
		return true
	}
	return *ac.Features.LogoAnimation
}
