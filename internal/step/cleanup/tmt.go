// Package cleanup holds the cleanup plugins.
package cleanup

import (
	"context"

	"tmt/internal/step"
	"tmt/pkg/logging"
)

func init() {
	step.MustRegister(step.Cleanup, "tmt", newTmt)
}

// Tmt releases guests and prunes the workdirs of all other steps.
type Tmt struct {
	step.BasePhase
}

func newTmt(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	return &Tmt{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"prune": true,
	})}, nil
}

func (c *Tmt) Go(ctx context.Context) error {
	plan := c.Step().Plan()
	plan.Provision().Suspend()
	if plan.DryRun() || !c.GetBool("prune") {
		return nil
	}
	for _, s := range plan.Steps() {
		if s.Name() == step.Cleanup {
			continue
		}
		c.Logger().Debug("pruning %s", s.Name())
		if err := s.Prune(); err != nil {
			return err
		}
	}
	return nil
}
