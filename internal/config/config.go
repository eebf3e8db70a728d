// Package config manages application configuration from various sources.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/logging"
)

// Data defines storage configuration.
type Data struct {
	Directory    string `json:"directory"`
	InMemory     bool   `json:"inMemory,omitempty"`
	MaxSizeBytes int64  `json:"maxSizeBytes,omitempty"`
}

// Queue defines the ingestion queue bounds.
type Queue struct {
	Depth int `json:"depth"`
}

// Drop defines the optional backpressure drop policy.
type Drop struct {
	Below          string        `json:"below"`
	ReportInterval time.Duration `json:"reportInterval,omitempty"`
}

// Config is the main configuration structure for the application.
type Config struct {
	AppName string `json:"appName"`
	Data    Data   `json:"data"`
	Queue   Queue  `json:"queue"`
	Drop    *Drop  `json:"drop,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
}

// Application constants
const (
	defaultDataDirectory = ".logvault"
	defaultQueueDepth    = 1024
	appName              = "logvault"
	databaseFile         = "logvault.db"
)

// Global configuration instance
var cfg *Config

// Load initializes the configuration from environment variables and config
// files. If debug is true, debug logging is enabled. It returns an error if
// configuration loading fails.
func Load(workingDir string, debug bool) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{}

	configureViper()
	setDefaults(debug)

	// Read global config
	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	// Load and merge local config
	mergeLocalConfig(workingDir)

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaultValues()
	logging.Setup(cfg.Debug)

	return cfg, nil
}

// Get returns the current configuration, loading defaults if Load has not
// been called.
func Get() *Config {
	if cfg == nil {
		if _, err := Load(".", false); err != nil {
			logging.Error("Failed to load config", "error", err)
		}
	}
	return cfg
}

// DatabasePath returns the backing file location, or "" for in-memory
// storage.
func (c *Config) DatabasePath() string {
	if c.Data.InMemory {
		return ""
	}
	return filepath.Join(c.Data.Directory, databaseFile)
}

// DropPolicy converts the configured drop section, or nil when absent.
func (c *Config) DropPolicy() (*event.DropPolicy, error) {
	if c.Drop == nil {
		return nil, nil
	}
	below, err := event.ParseLevel(c.Drop.Below)
	if err != nil {
		return nil, fmt.Errorf("invalid drop.below: %w", err)
	}
	return &event.DropPolicy{
		DropBelow:      below,
		ReportInterval: c.Drop.ReportInterval,
	}, nil
}

func configureViper() {
	viper.SetConfigName("." + appName)
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.AutomaticEnv()
}

func setDefaults(debug bool) {
	viper.SetDefault("appName", appName)
	viper.SetDefault("data.directory", defaultDataDirectory)
	viper.SetDefault("queue.depth", defaultQueueDepth)
	viper.SetDefault("debug", debug)
}

func readConfig(err error) error {
	if err == nil {
		return nil
	}
	// A missing config file is fine; anything else is not.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

func mergeLocalConfig(workingDir string) {
	local := viper.New()
	local.SetConfigName("." + appName)
	local.SetConfigType("json")
	local.AddConfigPath(workingDir)

	if err := local.ReadInConfig(); err == nil {
		viper.MergeConfigMap(local.AllSettings())
	}
}

func applyDefaultValues() {
	if cfg.AppName == "" {
		cfg.AppName = appName
	}
	if cfg.Queue.Depth < 1 {
		cfg.Queue.Depth = defaultQueueDepth
	}
	if cfg.Data.MaxSizeBytes < 0 {
		cfg.Data.MaxSizeBytes = 0
	}
}
