// Package config provides YAML-based configuration loading for Shiftboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ferndale/shiftboard/internal/period"
	"gopkg.in/yaml.v3"
)

// DayOpenCheckpoint is the checkpoint id that also rolls the business date.
const DayOpenCheckpoint = "day-open"

// Config is the top-level Shiftboard configuration, loaded from config.yaml.
type Config struct {
	Site        string             `yaml:"site"`
	Store       StoreConfig        `yaml:"store"`
	CatalogPath string             `yaml:"catalog"`
	Periods     []period.Spec      `yaml:"periods"`
	Checkpoints []CheckpointConfig `yaml:"checkpoints"`
	Uploads     UploadConfig       `yaml:"uploads"`
	Verify      VerifyConfig       `yaml:"verify"`
	Notify      NotifyConfig       `yaml:"notify"`
	API         APIConfig          `yaml:"api"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql
	Path     string `yaml:"path"`   // sqlite
	Host     string `yaml:"host"`   // mysql
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// CheckpointConfig is one wall-clock reset checkpoint.
type CheckpointConfig struct {
	ID string `yaml:"id"`
	At string `yaml:"at"` // HH:MM
}

// UploadConfig configures the object-storage collaborator and retry budget.
type UploadConfig struct {
	Endpoint    string        `yaml:"endpoint"` // HTTP store; empty means disk store
	Token       string        `yaml:"token"`
	Dir         string        `yaml:"dir"` // disk store directory
	BaseURL     string        `yaml:"base_url"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	Timeout     time.Duration `yaml:"timeout"`
}

// VerifyConfig configures the face-verification gate.
type VerifyConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotifyConfig configures chat alert delivery.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials and the alert channel.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord bot credentials and the alert channel.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "shiftboard.db"
	}
	if c.Store.Driver == "mysql" {
		if c.Store.Host == "" {
			c.Store.Host = "127.0.0.1"
		}
		if c.Store.Port == 0 {
			c.Store.Port = 3306
		}
	}
	if len(c.Checkpoints) == 0 {
		c.Checkpoints = []CheckpointConfig{
			{ID: DayOpenCheckpoint, At: "08:00"},
			{ID: "late-close", At: "22:30"},
		}
	}
	if c.Uploads.MaxAttempts == 0 {
		c.Uploads.MaxAttempts = 3
	}
	if c.Uploads.BaseBackoff == 0 {
		c.Uploads.BaseBackoff = 2 * time.Second
	}
	if c.Uploads.MaxBackoff == 0 {
		c.Uploads.MaxBackoff = 30 * time.Second
	}
	if c.Uploads.Timeout == 0 {
		c.Uploads.Timeout = 30 * time.Second
	}
	if c.Uploads.Endpoint == "" && c.Uploads.Dir == "" {
		c.Uploads.Dir = "blobs"
	}
	if c.Verify.Timeout == 0 {
		c.Verify.Timeout = 10 * time.Second
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Site == "" {
		errs = append(errs, "site is required")
	}
	if c.CatalogPath == "" {
		errs = append(errs, "catalog is required")
	}
	if len(c.Periods) == 0 {
		errs = append(errs, "at least one period is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or mysql", c.Store.Driver))
	}
	if c.Store.Driver == "mysql" && c.Store.Database == "" {
		errs = append(errs, "store.database is required for mysql")
	}
	seen := make(map[string]bool)
	hasDayOpen := false
	for i, cp := range c.Checkpoints {
		if cp.ID == "" {
			errs = append(errs, fmt.Sprintf("checkpoints[%d].id is required", i))
			continue
		}
		if seen[cp.ID] {
			errs = append(errs, fmt.Sprintf("checkpoints[%d]: duplicate id %q", i, cp.ID))
		}
		seen[cp.ID] = true
		if _, err := period.ParseMinutes(cp.At); err != nil {
			errs = append(errs, fmt.Sprintf("checkpoints[%d].at: %v", i, err))
		}
		if cp.ID == DayOpenCheckpoint {
			hasDayOpen = true
		}
	}
	if !hasDayOpen {
		errs = append(errs, fmt.Sprintf("checkpoints must include %q", DayOpenCheckpoint))
	}
	if c.Verify.Enabled && c.Verify.Endpoint == "" {
		errs = append(errs, "verify.endpoint is required when verify is enabled")
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required with a bot token")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a bot token")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DayOpenMinutes returns the minute-of-day at which the business date rolls.
func (c *Config) DayOpenMinutes() int {
	for _, cp := range c.Checkpoints {
		if cp.ID == DayOpenCheckpoint {
			m, err := period.ParseMinutes(cp.At)
			if err == nil {
				return m
			}
		}
	}
	return 8 * 60
}
