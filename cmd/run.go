package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/formatting"
	"tmt/internal/plan"
	_ "tmt/internal/plan/shapers"
	"tmt/internal/run"
	"tmt/internal/step"
	_ "tmt/internal/step/plugins"
	"tmt/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	runID               string
	runEnvironment      []string
	runEnvironmentFiles []string
	runContext          []string
	runDry              bool
	runForce            bool
	runMaxParallel      int
	runMaxTests         int
	runRepeat           int
	runPolicyFile       string
	runSteps            []string
	runHow              []string
	runNames            []string
)

// errTestsFailed is returned when the run completed but some tests did not
// pass.
var errTestsFailed = errors.New("some tests did not pass")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run test plans",
		Long: `Run all enabled plans of the metadata tree, or those matching --name.

Examples:
  tmt run
  tmt run --name /plans/smoke -e DEBUG=1 -c distro=fedora-40
  tmt run --id nightly --step discover --step execute --force`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().StringVar(&runID, "id", "", "Run id or path to the run workdir to reuse")
	cmd.Flags().StringArrayVarP(&runEnvironment, "environment", "e", nil, "Environment variable KEY=VALUE")
	cmd.Flags().StringArrayVar(&runEnvironmentFiles, "environment-file", nil, "File with environment variables")
	cmd.Flags().StringArrayVarP(&runContext, "context", "c", nil, "Context dimension, e.g. distro=fedora-40")
	cmd.Flags().BoolVar(&runDry, "dry", false, "Only show what would be done")
	cmd.Flags().BoolVar(&runForce, "force", false, "Run steps which are already done")
	cmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Number of plans running at once (default from config)")
	cmd.Flags().IntVar(&runMaxTests, "max-tests", 0, "Split plans with more tests into several plans")
	cmd.Flags().IntVar(&runRepeat, "repeat", 0, "Run every plan the given number of times")
	cmd.Flags().StringVar(&runPolicyFile, "policy-file", "", "File with policies modifying plan steps")
	cmd.Flags().StringArrayVar(&runSteps, "step", nil, "Run only the given step, may be repeated")
	cmd.Flags().StringArrayVar(&runHow, "how", nil, "Switch a step to another plugin, e.g. provision=local")
	cmd.Flags().StringArrayVar(&runNames, "name", nil, "Regular expression selecting plans")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tree, err := loadTree()
	if err != nil {
		return err
	}
	options, err := buildRunOptions()
	if err != nil {
		return err
	}

	r, err := run.New(cfg, tree, options)
	if err != nil {
		return err
	}
	defer r.Close()
	logging.Info("run", "run %s, workdir %s", r.ID(), r.Workdir())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var s *spinner.Spinner
	if quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Running plans..."
		s.Start()
	}
	runErr := r.Go(ctx)
	if s != nil {
		s.Stop()
	}

	failed := printSummary(cmd.OutOrStdout(), r.Results())
	if runErr != nil {
		return runErr
	}
	if failed {
		return errTestsFailed
	}
	return nil
}

// buildRunOptions converts the run flags.
func buildRunOptions() (run.Options, error) {
	env, err := environment.Parse(runEnvironment)
	if err != nil {
		return run.Options{}, usageErrorf("%v", err)
	}
	ctx, err := fmf.ParseContext(runContext)
	if err != nil {
		return run.Options{}, usageErrorf("%v", err)
	}
	for _, name := range runSteps {
		if !step.IsValidName(name) {
			return run.Options{}, usageErrorf("unknown step '%s', expected one of %s", name, strings.Join(step.Names, ", "))
		}
	}
	overrides, err := parseHow(runHow)
	if err != nil {
		return run.Options{}, err
	}

	return run.Options{
		Options: plan.Options{
			Environment: env,
			Context:     ctx,
			DryRun:      runDry,
			Force:       runForce,
			Steps:       runSteps,
			Overrides:   overrides,
			MaxTests:    runMaxTests,
			Repeat:      runRepeat,
		},
		ID:               runID,
		Names:            runNames,
		EnvironmentFiles: runEnvironmentFiles,
		PolicyFile:       runPolicyFile,
		MaxParallel:      runMaxParallel,
	}, nil
}

// parseHow converts "step=how" items into step overrides.
func parseHow(items []string) (map[string][]step.Override, error) {
	if len(items) == 0 {
		return nil, nil
	}
	overrides := map[string][]step.Override{}
	for _, item := range items {
		name, how, ok := strings.Cut(item, "=")
		if !ok || how == "" {
			return nil, usageErrorf("invalid --how '%s', expected STEP=HOW", item)
		}
		if !step.IsValidName(name) {
			return nil, usageErrorf("unknown step '%s' in --how", name)
		}
		overrides[name] = append(overrides[name], step.Override{How: how})
	}
	return overrides, nil
}

// printSummary writes one line per plan and reports whether any test did
// not pass.
func printSummary(w io.Writer, results map[string][]step.Result) bool {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := false
	for _, name := range names {
		summary := formatting.Summarize(results[name])
		fmt.Fprintf(w, "%s: %s\n", name, summary)
		if summary[step.OutcomeFail] > 0 || summary[step.OutcomeError] > 0 {
			failed = true
		}
	}
	return failed
}

