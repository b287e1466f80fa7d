package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig holds the configuration for a single event source.
type SourceConfig struct {
	// ID is the unique identifier for this source instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Type identifies the source kind (e.g., "email").
	Type string `mapstructure:"type" yaml:"type"`

	// Name is the user-defined label for this source instance.
	Name string `mapstructure:"name" yaml:"name"`

	// Enabled controls whether this source is actively polled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollIntervalSec is how often (in seconds) to fetch new events.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// Config holds source-specific key-value settings
	// (e.g., IMAP host, mailbox, username).
	Config map[string]string `mapstructure:"config" yaml:"config"`
}

// ScorerConfig holds settings for the external scoring backend.
type ScorerConfig struct {
	Model       string `mapstructure:"model" yaml:"model"`
	MaxTokens   int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	ChunkBudget int    `mapstructure:"chunk_budget" yaml:"chunk_budget"`
	Workers     int    `mapstructure:"workers" yaml:"workers"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RetentionConfig bounds the history kept on conversational records after
// a reveal.
type RetentionConfig struct {
	// KeepCount is the maximum number of history entries retained.
	KeepCount int `mapstructure:"keep_count" yaml:"keep_count"`

	// MaxAgeHours drops history entries older than this many hours.
	MaxAgeHours int `mapstructure:"max_age_hours" yaml:"max_age_hours"`
}

// MaxAgeMillis returns the age threshold in unix milliseconds.
func (r RetentionConfig) MaxAgeMillis() int64 {
	return int64(time.Duration(r.MaxAgeHours) * time.Hour / time.Millisecond)
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Sources   []SourceConfig  `mapstructure:"sources" yaml:"sources"`
	Scorer    ScorerConfig    `mapstructure:"scorer" yaml:"scorer"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notidrawer/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "notidrawer", "config.yaml")
}

// DefaultDataDir returns the directory holding the database and log file.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "notidrawer")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Sources: []SourceConfig{},
		Scorer: ScorerConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			ChunkBudget: 5000,
			Workers:     4,
			TimeoutSec:  90,
		},
		Retention: RetentionConfig{
			KeepCount:   5,
			MaxAgeHours: 12,
		},
		Display: DisplayConfig{
			Theme:           "default",
			PollIntervalSec: 120,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("scorer.model", "claude-sonnet-4-20250514")
	v.SetDefault("scorer.max_tokens", 4096)
	v.SetDefault("scorer.chunk_budget", 5000)
	v.SetDefault("scorer.workers", 4)
	v.SetDefault("scorer.timeout_sec", 90)
	v.SetDefault("retention.keep_count", 5)
	v.SetDefault("retention.max_age_hours", 12)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.poll_interval_sec", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each source entry.
	for i := range cfg.Sources {
		if cfg.Sources[i].PollIntervalSec == 0 {
			cfg.Sources[i].PollIntervalSec = 120
		}
		if !cfg.Sources[i].Enabled {
			// Viper unmarshals missing bools as false; treat unset as true.
			// We use the raw viper value to distinguish explicit false from absent.
			key := fmt.Sprintf("sources.%d.enabled", i)
			if !v.IsSet(key) {
				cfg.Sources[i].Enabled = true
			}
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("sources", cfg.Sources)
	v.Set("scorer", cfg.Scorer)
	v.Set("retention", cfg.Retention)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
