package plan

import (
	"fmt"
	"os"
	"sync"

	"tmt/internal/step"
)

// Shaper may replace a plan with other plans once its tests are known.
type Shaper interface {
	Name() string
	// Check reports whether the shaper applies to the plan.
	Check(p *Plan, tests []step.Test) bool
	// Apply returns the plans replacing p.
	Apply(p *Plan, tests []step.Test) ([]*Plan, error)
}

var (
	shapersMu sync.RWMutex
	shapers   []Shaper
)

// RegisterShaper adds a shaper. Shapers are consulted in registration order.
func RegisterShaper(s Shaper) {
	shapersMu.Lock()
	defer shapersMu.Unlock()
	shapers = append(shapers, s)
}

// Shapers returns the registered shapers in registration order.
func Shapers() []Shaper {
	shapersMu.RLock()
	defer shapersMu.RUnlock()
	return append([]Shaper(nil), shapers...)
}

// Reshape offers the plan to the registered shapers; the first one which
// applies replaces the plan in the run. Only plans attached to a run, not
// in dry mode and not themselves derived are reshaped.
func (p *Plan) Reshape(tests []step.Test) (bool, error) {
	if p.run == nil || p.DryRun() || p.derived {
		return false, nil
	}
	for _, shaper := range Shapers() {
		if !shaper.Check(p, tests) {
			continue
		}
		p.logger.Info("shaping plan with %s", shaper.Name())
		plans, err := shaper.Apply(p, tests)
		if err != nil {
			return false, fmt.Errorf("shaper %s failed: %w", shaper.Name(), err)
		}
		if err := p.run.SwapPlans(p, plans); err != nil {
			return false, err
		}
		var pending []*Plan
		for _, plan := range plans {
			if !plan.policiesApplied {
				pending = append(pending, plan)
			}
		}
		if err := p.run.ApplyPolicies(pending); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Derive creates a plan sharing the metadata of p but owning its own
// workdir, named "<name>.<id>", with tests already discovered. The discover
// workdir of p is copied over and the discover step is marked done and
// pinned, so forcing the run never rediscovers the full test set. Run
// policies are applied before discover wakes up.
func (p *Plan) Derive(id int, tests []step.Test) (*Plan, error) {
	opts := []Option{
		WithName(fmt.Sprintf("%s.%d", p.name, id)),
		WithInheritedEnvironment(p.inheritedEnvironment),
		WithInheritedContext(p.inheritedContext),
		WithStepOptions(p.stepOptions...),
	}
	if p.fetcher != nil {
		opts = append(opts, WithFetcher(p.fetcher))
	}
	if p.originalPlan != nil {
		opts = append(opts, WithOriginalPlan(p.originalPlan))
	}
	derived, err := New(p.node, p.tree, p.run, p.baseLogger, opts...)
	if err != nil {
		return nil, err
	}
	derived.derived = true

	if src, dst := p.discover.Workdir(), derived.discover.Workdir(); src != "" && dst != "" {
		if _, statErr := os.Stat(src); statErr == nil {
			if err := copyDir(src, dst, ""); err != nil {
				return nil, &GeneralError{Message: "failed to copy discover workdir", Err: err}
			}
		}
	}

	if p.run != nil {
		if err := p.run.ApplyPolicies([]*Plan{derived}); err != nil {
			return nil, err
		}
		derived.policiesApplied = true
	}

	if err := derived.discover.Wake(); err != nil {
		return nil, err
	}
	derived.discover.SetTests(tests)
	if err := derived.discover.SetStatus(step.StatusDone); err != nil {
		return nil, err
	}
	derived.discover.Pin()
	if err := derived.discover.Save(); err != nil {
		return nil, err
	}

	return derived, nil
}
