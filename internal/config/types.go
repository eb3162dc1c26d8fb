package config

import "time"

// Config is the top-level user configuration for tmt.
type Config struct {
	// WorkdirRoot is where run workdirs are created (default: /var/tmp/tmt).
	WorkdirRoot string `yaml:"workdirRoot,omitempty"`
	// CacheDir holds the shared fmf fetch cache (default: ~/.cache/tmt).
	CacheDir string `yaml:"cacheDir,omitempty"`
	// MaxParallelPlans limits how many plans a run executes at once (default: 1).
	MaxParallelPlans int `yaml:"maxParallelPlans,omitempty"`
	// FetchCacheSize is the in-process budget, in bytes, for loaded remote trees.
	FetchCacheSize int64     `yaml:"fetchCacheSize,omitempty"`
	Git            GitConfig `yaml:"git"`
	LogLevel       string    `yaml:"logLevel,omitempty"`
}

// GitConfig controls how remote repositories are fetched.
type GitConfig struct {
	// Jobs is the number of concurrent git processes (default: 4).
	Jobs int `yaml:"jobs,omitempty"`
	// Retries is how many times a failed clone/fetch is retried (default: 3).
	Retries int `yaml:"retries,omitempty"`
	// RetryDelay is the base delay between retries (default: 2s).
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
}
