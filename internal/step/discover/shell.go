package discover

import (
	"context"
	"fmt"
	"path"

	"tmt/internal/environment"
	"tmt/internal/step"
	"tmt/pkg/logging"
)

// Shell discovers tests listed inline in the plan:
//
//	discover:
//	    how: shell
//	    tests:
//	      - name: /smoke
//	        test: ./smoke.sh
type Shell struct {
	step.BasePhase
	tests []step.Test
}

func newShell(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	sh := &Shell{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"tests": nil,
	})}

	items, ok := sh.Get("tests").([]interface{})
	if !ok && sh.Get("tests") != nil {
		return nil, fmt.Errorf("tests must be a list, got %T", sh.Get("tests"))
	}
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("test %d must be a mapping", i)
		}
		d := step.PhaseData(m)
		name, command := d.String("name", ""), d.String("test", "")
		if name == "" || command == "" {
			return nil, fmt.Errorf("test %d requires both name and test", i)
		}
		env, err := environment.FromData(m["environment"])
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", name, err)
		}
		sh.tests = append(sh.tests, step.Test{
			Name:        path.Join("/", name),
			Test:        command,
			Path:        d.String("path", "/"),
			Duration:    d.String("duration", ""),
			Environment: env,
		})
	}
	return sh, nil
}

func (s *Shell) Go(ctx context.Context) error {
	s.Logger().Info("%d tests discovered", len(s.tests))
	s.Step().Plan().Discover().AddTests(s.Name(), s.tests)
	return nil
}
