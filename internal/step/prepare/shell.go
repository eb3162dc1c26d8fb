// Package prepare holds the prepare plugins.
package prepare

import (
	"context"

	"tmt/internal/step"
	"tmt/internal/step/scripts"
	"tmt/pkg/logging"
)

func init() {
	step.MustRegister(step.Prepare, "shell", newShell)
}

// Shell runs the configured scripts on every guest.
type Shell struct {
	step.BasePhase
}

func newShell(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	return &Shell{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"script": nil,
	})}, nil
}

func (s *Shell) Go(ctx context.Context) error {
	return scripts.Run(ctx, s.Step().Plan(), s.Logger(), s.GetStrings("script"))
}
