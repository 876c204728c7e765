package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agent. It is loaded once at
// startup and passed to the components that need it; there is no
// ambient global.
type Config struct {
	Email     EmailConfig     `yaml:"email"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Slack     SlackConfig     `yaml:"slack"`
	LinkedIn  LinkedInConfig  `yaml:"linkedin"`
	Instagram InstagramConfig `yaml:"instagram"`
	Pushover  PushoverConfig  `yaml:"pushover"`
	Server    ServerConfig    `yaml:"server"`

	StorePath          string `yaml:"store_path"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type EmailConfig struct {
	IMAPHost     string `yaml:"imap_host"`
	IMAPPort     int    `yaml:"imap_port"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

// Configured reports whether the email channel has usable credentials.
func (c EmailConfig) Configured() bool {
	return c.Username != "" && c.Password != ""
}

type TelegramConfig struct {
	AppID    int    `yaml:"app_id"`
	AppHash  string `yaml:"app_hash"`
	BotToken string `yaml:"bot_token"`
	DataPath string `yaml:"data_path"`
}

func (c TelegramConfig) Configured() bool {
	return c.AppID != 0 && c.AppHash != "" && c.BotToken != ""
}

type WhatsAppConfig struct {
	Enabled     bool   `yaml:"enabled"`
	StoragePath string `yaml:"storage_path"`
}

func (c WhatsAppConfig) Configured() bool {
	return c.Enabled && c.StoragePath != ""
}

type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

func (c SlackConfig) Configured() bool {
	return c.AppToken != "" && c.BotToken != ""
}

type LinkedInConfig struct {
	AccessToken  string `yaml:"access_token"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

func (c LinkedInConfig) Configured() bool {
	return c.AccessToken != ""
}

type InstagramConfig struct {
	AccessToken  string `yaml:"access_token"`
	AppID        string `yaml:"app_id"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

func (c InstagramConfig) Configured() bool {
	return c.AccessToken != ""
}

type PushoverConfig struct {
	AppToken  string `yaml:"app_token"`
	UserToken string `yaml:"user_token"`
}

func (c PushoverConfig) Configured() bool {
	return c.AppToken != "" && c.UserToken != ""
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads configuration from a YAML file, expanding environment
// variable references in the raw document first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Email: EmailConfig{
			IMAPHost:     "imap.gmail.com",
			IMAPPort:     993,
			SMTPHost:     "smtp.gmail.com",
			SMTPPort:     587,
			PollInterval: 30,
		},
		Telegram: TelegramConfig{
			DataPath: "./data/telegram",
		},
		WhatsApp: WhatsAppConfig{
			StoragePath: "./data/whatsapp",
		},
		LinkedIn: LinkedInConfig{
			PollInterval: 60,
		},
		Instagram: InstagramConfig{
			PollInterval: 60,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		StorePath:          "messages.json",
		RateLimitPerMinute: 10,
	}
}
