// Package scripts runs shell snippets from phase configuration on every
// provisioned guest.
package scripts

import (
	"context"
	"fmt"
	"strings"

	"tmt/internal/step"
	"tmt/pkg/logging"
)

// Run executes each script on each guest of the plan, in the plan worktree
// and with the plan environment. The first failing script stops the run.
func Run(ctx context.Context, plan step.Plan, logger *logging.Logger, scripts []string) error {
	guests := plan.Provision().Guests()
	if len(scripts) == 0 {
		return nil
	}
	if plan.DryRun() {
		for _, script := range scripts {
			logger.Info("would run: %s", script)
		}
		return nil
	}
	if len(guests) == 0 {
		return fmt.Errorf("no guests provisioned")
	}

	env := plan.Environment()
	for _, guest := range guests {
		for _, script := range scripts {
			logger.Info("%s: %s", guest.Name(), script)
			res, err := guest.Execute(ctx, script, step.ExecOptions{Dir: plan.Worktree(), Environment: env})
			if err != nil {
				return fmt.Errorf("guest %s: %w", guest.Name(), err)
			}
			if out := strings.TrimSpace(res.Stdout); out != "" {
				logger.Debug("out: %s", out)
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("script '%s' failed on guest %s with exit code %d: %s",
					script, guest.Name(), res.ExitCode, strings.TrimSpace(res.Stderr))
			}
		}
	}
	return nil
}
