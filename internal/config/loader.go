package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".groupscribe"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("GROUPSCRIBE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("GROUPSCRIBE_STORE", &cfg.Store)
	envconfig.Process("GROUPSCRIBE_PROVIDER", &cfg.Provider)
	envconfig.Process("GROUPSCRIBE_WHATSAPP", &cfg.WhatsApp)
	envconfig.Process("GROUPSCRIBE", &cfg.Crypto)
	envconfig.Process("GROUPSCRIBE_SMTP", &cfg.SMTP)
	envconfig.Process("GROUPSCRIBE_QUEUE", &cfg.Queue)
	envconfig.Process("GROUPSCRIBE_SUMMARIZE", &cfg.Summarize)

	// Fallback for API key
	if cfg.Provider.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Provider.APIKey = key
		}
	}

	expandHome(&cfg.Store.Path)
	expandHome(&cfg.WhatsApp.DevicePath)
	expandHome(&cfg.WhatsApp.QRPath)

	if cfg.Summarize.MaxAttempts <= 0 {
		cfg.Summarize.MaxAttempts = DefaultConfig().Summarize.MaxAttempts
	}
	if cfg.Summarize.RetryDelay <= 0 {
		cfg.Summarize.RetryDelay = DefaultConfig().Summarize.RetryDelay
	}

	return cfg, nil
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
