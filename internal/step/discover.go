package step

import (
	"errors"
	"sync"

	"tmt/internal/workdir"
	"tmt/pkg/logging"
)

const testsFile = "tests"

// DiscoverStep gathers the tests of a plan.
type DiscoverStep struct {
	*Step

	mu    sync.Mutex
	tests []Test
}

// NewDiscover creates the discover step.
func NewDiscover(plan Plan, data interface{}, logger *logging.Logger, opts ...Option) *DiscoverStep {
	d := &DiscoverStep{Step: New(Discover, plan, data, logger, opts...)}
	d.Step.state = d
	return d
}

// Tests returns the discovered tests in discovery order.
func (d *DiscoverStep) Tests() []Test {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Test(nil), d.tests...)
}

// AddTests records tests found by a phase, assigning serial numbers.
func (d *DiscoverStep) AddTests(phase string, tests []Test) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range tests {
		t.Phase = phase
		t.Serial = len(d.tests) + 1
		d.tests = append(d.tests, t)
	}
}

// SetTests replaces the discovered tests, keeping their serial numbers.
func (d *DiscoverStep) SetTests(tests []Test) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tests = append([]Test(nil), tests...)
}

// ExtractTestsLater reports whether any phase defers test discovery.
func (d *DiscoverStep) ExtractTestsLater() bool {
	for _, p := range d.phases {
		if te, ok := p.(TestExtractor); ok && te.ExtractTestsLater() {
			return true
		}
	}
	return false
}

func (d *DiscoverStep) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tests = nil
}

func (d *DiscoverStep) files() []string { return []string{testsFile} }

func (d *DiscoverStep) load(storage *workdir.Storage, section string) error {
	var tests []Test
	if err := storage.Load(section, testsFile, &tests); err != nil {
		if errors.Is(err, workdir.ErrNotFound) {
			return nil
		}
		return err
	}
	d.SetTests(tests)
	return nil
}

func (d *DiscoverStep) save(storage *workdir.Storage, section string) error {
	return storage.Save(section, testsFile, d.Tests())
}
