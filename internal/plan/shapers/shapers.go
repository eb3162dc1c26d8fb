// Package shapers provides the plan shapers enabled by run options.
package shapers

import (
	"tmt/internal/plan"
	"tmt/internal/step"
)

func init() {
	plan.RegisterShaper(MaxTests{})
	plan.RegisterShaper(Repeat{})
}

// MaxTests splits a plan with more than Options.MaxTests tests into plans
// of at most that many tests each.
type MaxTests struct{}

func (MaxTests) Name() string { return "max-tests" }

func (MaxTests) Check(p *plan.Plan, tests []step.Test) bool {
	limit := p.Options().MaxTests
	return limit > 0 && len(tests) > limit
}

func (MaxTests) Apply(p *plan.Plan, tests []step.Test) ([]*plan.Plan, error) {
	limit := p.Options().MaxTests
	var plans []*plan.Plan
	for start, id := 0, 1; start < len(tests); start, id = start+limit, id+1 {
		end := start + limit
		if end > len(tests) {
			end = len(tests)
		}
		derived, err := p.Derive(id, tests[start:end])
		if err != nil {
			return nil, err
		}
		plans = append(plans, derived)
	}
	return plans, nil
}

// Repeat replaces a plan with Options.Repeat plans running the same tests.
type Repeat struct{}

func (Repeat) Name() string { return "repeat" }

func (Repeat) Check(p *plan.Plan, tests []step.Test) bool {
	return p.Options().Repeat > 1
}

func (Repeat) Apply(p *plan.Plan, tests []step.Test) ([]*plan.Plan, error) {
	count := p.Options().Repeat
	plans := make([]*plan.Plan, 0, count)
	for id := 1; id <= count; id++ {
		derived, err := p.Derive(id, tests)
		if err != nil {
			return nil, err
		}
		plans = append(plans, derived)
	}
	return plans, nil
}
