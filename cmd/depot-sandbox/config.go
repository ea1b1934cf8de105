package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the sandbox client configuration, loadable from a TOML file.
// Flags override file values.
type Config struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Bucket  string `toml:"bucket"`
	Timeout string `toml:"timeout"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// merge applies flag overrides on top of file values and resolves defaults.
func (c *Config) merge(baseURL, apiKey, bucket string) {
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if apiKey != "" {
		c.APIKey = apiKey
	}
	if bucket != "" {
		c.Bucket = bucket
	}
}

func (c *Config) timeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
