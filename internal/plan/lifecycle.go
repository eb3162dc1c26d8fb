package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tmt/internal/step"
)

// Wake wakes up all steps. Invalid data of a disabled step is reported as a
// warning only.
func (p *Plan) Wake() error {
	if p.reference != nil {
		return &GeneralError{Message: fmt.Sprintf("plan '%s' is a remote plan reference, resolve its imports first", p.name)}
	}
	for _, s := range p.Steps() {
		if err := s.Wake(); err != nil {
			var specErr *SpecificationError
			if errors.As(err, &specErr) && !s.Enabled() {
				p.logger.Warn("step %s is disabled, ignoring invalid data: %v", s.Name(), err)
				continue
			}
			return err
		}
	}
	return nil
}

// checkStandalone fails when more than one phase, in one step or across
// steps, needs to run alone. A single standalone step limits this
// invocation to that step.
func (p *Plan) checkStandalone() error {
	var standalone []string
	for _, s := range p.Steps() {
		switch n := s.PluginsInStandaloneMode(); {
		case n > 1:
			return &GeneralError{Message: fmt.Sprintf(
				"step '%s' has multiple plugin configs which require running on their own, combination of such configs is not possible",
				s.Name())}
		case n == 1:
			standalone = append(standalone, s.Name())
		}
	}
	if len(standalone) > 1 {
		sort.Strings(standalone)
		return &GeneralError{Message: fmt.Sprintf(
			"these steps require running on their own, their combination is not compatible: %s",
			strings.Join(standalone, ", "))}
	}
	if len(standalone) == 1 {
		p.logger.Info("running step %s alone", standalone[0])
		p.standaloneStep = standalone[0]
	}
	return nil
}

// Go runs the plan. Steps up to finish run in order; whatever happens,
// steps are suspended afterwards and report and cleanup get their chance
// to run. A plan without tests, or replaced by a shaper, stops after
// discover; the replacements of a reshaped plan run the remaining steps.
func (p *Plan) Go(ctx context.Context) (err error) {
	p.Header()
	if err := p.Wake(); err != nil {
		return err
	}
	if err := p.checkStandalone(); err != nil {
		return err
	}

	reportRan := false
	defer func() {
		for _, s := range p.Steps() {
			if s.Name() != step.Report && s.Name() != step.Cleanup {
				s.Suspend()
			}
		}
		var reportErr, cleanupErr error
		if p.report.Enabled() && !reportRan && p.report.Status() != step.StatusDone {
			reportErr = p.report.Go(ctx)
		}
		if p.cleanup.Enabled() {
			cleanupErr = p.cleanup.Go(ctx)
		}
		err = errors.Join(err, reportErr, cleanupErr)
	}()

	for _, s := range p.Steps() {
		if s.Name() == step.Cleanup || !s.Enabled() {
			continue
		}
		reportRan = reportRan || s.Name() == step.Report
		if err := s.Go(ctx); err != nil {
			return err
		}
		if s.Name() != step.Discover {
			continue
		}

		tests := p.discover.Tests()
		if len(tests) == 0 && !p.DryRun() && !p.discover.ExtractTestsLater() {
			p.logger.Warn("no tests found, finishing plan")
			return nil
		}
		replaced, err := p.Reshape(tests)
		if err != nil {
			return err
		}
		if replaced {
			p.logger.Info("plan was replaced, stopping")
			return nil
		}
		p.execute.SyncResults(tests)
		if p.execute.Awake() {
			if err := p.execute.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}
