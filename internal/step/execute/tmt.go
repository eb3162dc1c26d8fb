// Package execute holds the execute plugins.
package execute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tmt/internal/environment"
	"tmt/internal/step"
	"tmt/internal/workdir"
	"tmt/pkg/logging"
)

func init() {
	step.MustRegister(step.Execute, "tmt", newTmt)
}

const defaultDuration = 5 * time.Minute

// Tmt runs every discovered test on every guest.
type Tmt struct {
	step.BasePhase
}

func newTmt(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	return &Tmt{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"exit-first": false,
		"duration":   defaultDuration.String(),
	})}, nil
}

func (e *Tmt) Go(ctx context.Context) error {
	plan := e.Step().Plan()
	tests := plan.Discover().Tests()
	if plan.DryRun() {
		for _, t := range tests {
			e.Logger().Info("would run %s", t.Name)
		}
		return nil
	}

	guests := plan.Provision().Guests()
	if len(guests) == 0 {
		return fmt.Errorf("no guests provisioned")
	}

	timeout := defaultDuration
	if d, err := time.ParseDuration(e.GetString("duration")); err == nil && d > 0 {
		timeout = d
	}

	for _, guest := range guests {
		for _, test := range tests {
			result := e.runTest(ctx, plan, guest, test, timeout)
			plan.Execute().Record(result)
			if result.Outcome != step.OutcomePass && e.GetBool("exit-first") {
				e.Logger().Warn("%s %s, stopping on first failure", test.Name, result.Outcome)
				return nil
			}
		}
	}
	return nil
}

func (e *Tmt) runTest(ctx context.Context, plan step.Plan, guest step.Guest, test step.Test, timeout time.Duration) step.Result {
	result := step.Result{Name: test.Name, Serial: test.Serial, Guest: guest.Name()}

	dataDir := filepath.Join(plan.DataDir(), step.Execute, workdir.SanitizeName(guest.Name()),
		fmt.Sprintf("%s-%d", workdir.SanitizeName(test.Name), test.Serial))
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		result.Outcome = step.OutcomeError
		result.Note = err.Error()
		return result
	}

	env := plan.Environment().Merge(test.Environment, environment.Environment{
		"TMT_TEST_NAME":          test.Name,
		"TMT_TEST_SERIAL_NUMBER": fmt.Sprint(test.Serial),
		"TMT_TEST_DATA":          dataDir,
	})
	opts := step.ExecOptions{
		Dir:         filepath.Join(plan.Worktree(), strings.TrimPrefix(test.Path, "/")),
		Environment: env,
		Timeout:     test.Timeout(timeout),
	}

	res, err := guest.Execute(ctx, test.Test, opts)
	result.Duration = res.Duration.Round(time.Millisecond).String()

	logPath := filepath.Join(dataDir, "output.txt")
	if writeErr := os.WriteFile(logPath, []byte(res.Stdout+res.Stderr), 0644); writeErr == nil {
		result.Log = logPath
	}

	switch {
	case err != nil:
		result.Outcome = step.OutcomeError
		result.Note = err.Error()
	case res.ExitCode == 0:
		result.Outcome = step.OutcomePass
	default:
		result.Outcome = step.OutcomeFail
		result.Note = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	e.Logger().Info("%s %s (%s)", result.Outcome, test.Name, result.Duration)
	return result
}
