// Package config provides user configuration for tmt.
//
// Configuration is read from config.yaml in a single directory, by default
// ~/.config/tmt. A missing file is not an error: the defaults returned by
// GetDefaultConfig apply.
//
//	workdirRoot: /var/tmp/tmt
//	maxParallelPlans: 2
//	git:
//	  jobs: 4
//	  retries: 3
//	  retryDelay: 2s
//	logLevel: info
//
// The TMT_WORKDIR_ROOT environment variable overrides workdirRoot.
//
// Validation collects every problem into a ConfigurationErrorCollection, so a
// user fixing a config file sees all mistakes at once.
package config
