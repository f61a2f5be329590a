package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive values may be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Sync struct {
		Mode                   string `yaml:"mode"`      // "live" or "mock"
		AutoSync               bool   `yaml:"auto_sync"` // trigger a sync on offline -> online
		PendingPollIntervalSec int    `yaml:"pending_poll_interval_sec"`
		SuccessCooldownSec     int    `yaml:"success_cooldown_sec"`
	} `yaml:"sync"`

	API struct {
		BaseURL    string `yaml:"base_url"`
		Token      string `yaml:"token"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"api"`

	Connectivity struct {
		WSURL            string `yaml:"ws_url"`    // heartbeat endpoint (link layer)
		ProbeURL         string `yaml:"probe_url"` // reachability endpoint (app layer)
		ProbeIntervalSec int    `yaml:"probe_interval_sec"`
	} `yaml:"connectivity"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Sync.Mode)
	if mode != "live" && mode != "mock" {
		return fmt.Errorf("unknown sync mode: %q (want live or mock)", c.Sync.Mode)
	}

	if mode == "live" {
		if !hasPrefix(c.API.BaseURL, "http://") && !hasPrefix(c.API.BaseURL, "https://") {
			return fmt.Errorf("invalid API base URL: %s", c.API.BaseURL)
		}
		if c.Connectivity.WSURL != "" &&
			!hasPrefix(c.Connectivity.WSURL, "ws://") && !hasPrefix(c.Connectivity.WSURL, "wss://") {
			return fmt.Errorf("invalid connectivity WS URL: %s", c.Connectivity.WSURL)
		}
	}

	if c.API.TimeoutSec <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.Sync.PendingPollIntervalSec <= 0 {
		return fmt.Errorf("pending poll interval must be positive")
	}
	if c.Sync.SuccessCooldownSec <= 0 {
		return fmt.Errorf("success cooldown must be positive")
	}
	if c.Connectivity.ProbeIntervalSec <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables on top of the file values.
// Environment variables win so the API token never has to live in the file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Token != "" {
		fmt.Println("⚠️  SECURITY WARNING: API token found in config file.")
		fmt.Println("   Recommendation: use the VESTPOD_API_TOKEN environment variable instead.")
	}

	if token := os.Getenv("VESTPOD_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if base := os.Getenv("VESTPOD_API_BASE_URL"); base != "" {
		cfg.API.BaseURL = base
	}
}
