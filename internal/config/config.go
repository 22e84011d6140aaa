// Package config holds chromeprov configuration: where binaries live,
// which endpoints resolve driver releases, and how the headless
// environment is prepared.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full chromeprov configuration.
type Config struct {
	// InstallDir is where the chromedriver binary is placed.
	InstallDir string `yaml:"install_dir"`

	// ManifestPath is the install history file.
	ManifestPath string `yaml:"manifest_path"`

	Chrome   ChromeConfig   `yaml:"chrome"`
	Resolver ResolverConfig `yaml:"resolver"`
	Headless HeadlessConfig `yaml:"headless"`
}

// ChromeConfig pins local binary paths; empty means auto-discover.
type ChromeConfig struct {
	Path       string `yaml:"path"`
	DriverPath string `yaml:"driver_path"`
}

// ResolverConfig configures the Chrome-for-Testing client.
type ResolverConfig struct {
	// BaseURL of the version-resolution endpoints; empty uses the
	// public chrome-for-testing host.
	BaseURL string `yaml:"base_url"`

	// Platform overrides auto-detection (linux64, mac-arm64, ...).
	Platform string `yaml:"platform"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// HeadlessConfig configures the headless environment.
type HeadlessConfig struct {
	Display string `yaml:"display"`
}

// DefaultConfig returns defaults matching the upstream container layout.
func DefaultConfig() *Config {
	return &Config{
		InstallDir:   "/usr/local/bin",
		ManifestPath: "/usr/local/share/chromeprov/manifest.json",
		Resolver: ResolverConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Headless: HeadlessConfig{
			Display: ":99",
		},
	}
}

// HTTPTimeout returns the resolver timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Resolver.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}

// Load reads a YAML config, fills unset fields from defaults, and
// applies environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHROMEPROV_INSTALL_DIR"); v != "" {
		c.InstallDir = v
	}
	if v := os.Getenv("CHROMEPROV_MANIFEST"); v != "" {
		c.ManifestPath = v
	}
	if v := os.Getenv("CHROMEPROV_BASE_URL"); v != "" {
		c.Resolver.BaseURL = v
	}
	if v := os.Getenv("CHROMEPROV_PLATFORM"); v != "" {
		c.Resolver.Platform = v
	}
	if v := os.Getenv("CHROMEPROV_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Resolver.MaxRetries = n
		}
	}
}

func (c *Config) validate() error {
	if c.InstallDir == "" {
		return fmt.Errorf("install_dir must not be empty")
	}
	if c.ManifestPath == "" {
		return fmt.Errorf("manifest_path must not be empty")
	}
	if c.Resolver.MaxRetries < 0 {
		return fmt.Errorf("resolver.max_retries must be >= 0")
	}
	return nil
}
