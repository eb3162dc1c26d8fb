package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"tmt/internal/config"
	"tmt/internal/fmf"
	"tmt/pkg/logging"
)

// loadConfig reads the user configuration and initializes logging. The
// command line flags win over the configured log level.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetDefaultConfigPath(); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		reportConfigError(os.Stderr, err)
		return config.Config{}, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	switch {
	case debug:
		level = logging.LevelDebug
	case quiet:
		level = logging.LevelWarn
	}
	logging.InitForCLI(level, os.Stderr)
	return cfg, nil
}

// reportConfigError prints the detailed report of configuration problems,
// the one-line error alone does not say how to fix them.
func reportConfigError(w io.Writer, err error) {
	var collection *config.ConfigurationErrorCollection
	var single config.ConfigurationError
	switch {
	case errors.As(err, &collection):
		fmt.Fprintln(w, collection.GetDetailedReport())
	case errors.As(err, &single):
		fmt.Fprintln(w, single.DetailedError())
	}
}

// loadTree loads the metadata tree containing the --root directory.
func loadTree() (*fmf.Tree, error) {
	root, err := fmf.FindRoot(rootPath)
	if err != nil {
		return nil, err
	}
	return fmf.Load(root)
}
