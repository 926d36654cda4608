package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"create-uix-app/internal/install"
	"create-uix-app/internal/variant"
)

type Config struct {
	// Variants is the capability set: the template flavors this installation
	// offers. Default is always on.
	Variants  []string                  `yaml:"variants"`
	Install   []string                  `yaml:"install"`
	Log       LogConfig                 `yaml:"log"`
	Templates map[string]TemplateConfig `yaml:"templates"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TemplateConfig struct {
	URL string `yaml:"url"`
}

func DefaultConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".create-uix-app"
	}
	return filepath.Join(homeDir, ".create-uix-app")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func DefaultConfig() *Config {
	return &Config{
		Variants: variant.All().Names(),
		Install:  append([]string(nil), install.DefaultCommand...),
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// LoadConfig reads configPath, or the default location when it is empty. A
// missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// An explicit empty variant list disables every flag; mergo would treat it
	// as unset.
	variants := cfg.Variants
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if variants != nil {
		cfg.Variants = variants
	}

	if _, err := cfg.Capabilities(); err != nil {
		return nil, err
	}
	if _, err := cfg.TemplateURLs(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Capabilities turns the configured variant names into a capability set.
func (c *Config) Capabilities() (variant.Capabilities, error) {
	caps := variant.NewCapabilities()
	for _, name := range c.Variants {
		v, err := variant.ParseVariant(name)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		caps[v] = true
	}
	return caps, nil
}

// TemplateURLs returns the per-variant archive URL overrides.
func (c *Config) TemplateURLs() (map[variant.Variant]string, error) {
	urls := map[variant.Variant]string{}
	for name, t := range c.Templates {
		v, err := variant.ParseVariant(name)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		if t.URL != "" {
			urls[v] = t.URL
		}
	}
	return urls, nil
}
