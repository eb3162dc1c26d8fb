package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tmt/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/tmt"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaceable in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/tmt.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from config.yaml in the given directory.
// A missing file yields the defaults. TMT_WORKDIR_ROOT, when set, wins over
// the file.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, err
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, NewConfigurationErrorWithDetails(configFilePath, "parse",
				"malformed configuration", err.Error(), []string{"check the YAML syntax of " + configFileName})
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if root := os.Getenv(WorkdirRootEnvVar); root != "" {
		config.WorkdirRoot = root
	}

	if errs := config.Validate(); errs.HasErrors() {
		return Config{}, errs
	}
	return config, nil
}

// Validate checks value ranges. All problems are collected rather than
// stopping at the first.
func (c Config) Validate() *ConfigurationErrorCollection {
	errs := NewConfigurationErrorCollection()
	if c.WorkdirRoot == "" {
		errs.Add(NewConfigurationError("workdirRoot", "validation", "must not be empty"))
	}
	if c.MaxParallelPlans < 1 {
		errs.Add(NewConfigurationError("maxParallelPlans", "validation", "must be at least 1"))
	}
	if c.Git.Jobs < 1 {
		errs.Add(NewConfigurationError("git.jobs", "validation", "must be at least 1"))
	}
	if c.Git.Retries < 0 {
		errs.Add(NewConfigurationError("git.retries", "validation", "must not be negative"))
	}
	if c.FetchCacheSize < 0 {
		errs.Add(NewConfigurationError("fetchCacheSize", "validation", "must not be negative"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add(NewConfigurationErrorWithDetails("logLevel", "validation", "unknown log level", err.Error(),
			[]string{"use one of debug, info, warn, error"}))
	}
	return errs
}
