package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultWorkdirRoot is used when neither config nor TMT_WORKDIR_ROOT set one.
	DefaultWorkdirRoot = "/var/tmp/tmt"

	// WorkdirRootEnvVar overrides the configured workdir root.
	WorkdirRootEnvVar = "TMT_WORKDIR_ROOT"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	cacheDir := filepath.Join(os.TempDir(), "tmt-cache")
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "tmt")
	}

	return Config{
		WorkdirRoot:      DefaultWorkdirRoot,
		CacheDir:         cacheDir,
		MaxParallelPlans: 1,
		FetchCacheSize:   64 << 20,
		Git: GitConfig{
			Jobs:       4,
			Retries:    3,
			RetryDelay: 2 * time.Second,
		},
		LogLevel: "info",
	}
}
