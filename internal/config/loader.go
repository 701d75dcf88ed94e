package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".deskwise"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("DESKWISE_CONFIG")); explicit != "" {
		return ExpandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// ExpandHome resolves a leading "~" in a path against the user home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // use defaults if we can't resolve a config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If the file doesn't exist, continue with defaults.

	// Override with environment variables for each group.
	envconfig.Process("DESKWISE_PATHS", &cfg.Paths)
	envconfig.Process("DESKWISE_AI", &cfg.AI)
	envconfig.Process("DESKWISE_RATELIMIT", &cfg.RateLimit)
	envconfig.Process("DESKWISE_ESCALATION", &cfg.Escalation)
	envconfig.Process("DESKWISE_LEARNING", &cfg.Learning)
	envconfig.Process("DESKWISE_FAQCACHE", &cfg.FAQCache)
	envconfig.Process("DESKWISE_NOTIFY", &cfg.Notify.Kafka)
	envconfig.Process("DESKWISE_NOTIFY", &cfg.Notify.Slack)
	envconfig.Process("DESKWISE_TICKETSTORE", &cfg.TicketStore)
	envconfig.Process("DESKWISE_SERVE", &cfg.Serve)

	return cfg, nil
}

// Save writes the config back to the config file with 0600 permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
