package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file, applies
// defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	// #nosec G304 - path comes from the --config flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// FindConfigFile returns the default config file path if it exists in the
// working directory.
func FindConfigFile() (string, error) {
	if _, err := os.Stat(DefaultConfigFile); err != nil {
		return "", fmt.Errorf("config file %s not found", DefaultConfigFile)
	}
	return DefaultConfigFile, nil
}

// ExpandHome resolves a leading "~/" against the current user's home
// directory. Anything else is returned unchanged.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Bootstrap.User == "" {
		c.Bootstrap.User = DefaultSSHUser
	}
	if c.Topology.Servers == 0 {
		c.Topology.Servers = 1
	}
	if c.Monitoring.Enabled {
		if c.Monitoring.Namespace == "" {
			c.Monitoring.Namespace = DefaultMonitoringNamespace
		}
		if c.Monitoring.Release == "" {
			c.Monitoring.Release = DefaultMonitoringRelease
		}
		if c.Monitoring.RepoURL == "" {
			c.Monitoring.RepoURL = DefaultMonitoringRepoURL
		}
		if c.Monitoring.Chart == "" {
			c.Monitoring.Chart = DefaultMonitoringChart
		}
	}
}

// WriteFile marshals the config to YAML and writes it to path.
// Used by the init wizard.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
