package cmd

import (
	"errors"
	"fmt"
	"os"

	"tmt/internal/plan"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates that all tests passed.
	ExitCodeSuccess = 0
	// ExitCodeError indicates failed tests or a general error.
	ExitCodeError = 1
	// ExitCodeSpecification indicates invalid metadata or options.
	ExitCodeSpecification = 2
)

var (
	rootPath   string
	configPath string
	debug      bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tmt",
	Short: "Run test plans described by fmf metadata",
	Long: `tmt executes test plans stored in an fmf metadata tree. Each plan goes
through the discover, provision, prepare, execute, report, finish and
cleanup steps. Plans may import plans from remote repositories.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command and the TMT_VERSION
// exported to tests.
func SetVersion(v string) {
	rootCmd.Version = v
	plan.Version = v
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tmt version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to exit codes for scripting.
func getExitCode(err error) int {
	var specErr *plan.SpecificationError
	if errors.As(err, &specErr) {
		return ExitCodeSpecification
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return ExitCodeSpecification
	}
	return ExitCodeError
}

// usageError reports invalid command line input.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootPath, "root", ".", "Path to the metadata tree")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration directory (default is $HOME/.config/tmt)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPlansCmd())
}
