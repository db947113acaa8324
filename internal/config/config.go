package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the suprss binary needs at startup.
type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Server struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`

	Scheduler struct {
		Enabled   bool `yaml:"enabled"`
		BatchSize int  `yaml:"batch_size"`
		DelayMS   int  `yaml:"delay_ms"`
	} `yaml:"scheduler"`

	Fetch struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"fetch"`
}

// Default returns a config with working defaults for local use.
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./suprss.db"
	cfg.Server.Addr = ":4000"
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.BatchSize = 10
	cfg.Scheduler.DelayMS = 400
	cfg.Fetch.TimeoutSeconds = 30
	return cfg
}

// Load reads the yaml config at path, falling back to defaults when the
// file does not exist. Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Delay returns the scheduler's inter-refresh politeness delay.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Scheduler.DelayMS) * time.Millisecond
}

// FetchTimeout returns the per-request fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
