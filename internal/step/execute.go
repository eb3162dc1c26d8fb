package step

import (
	"errors"
	"sync"

	"tmt/internal/workdir"
	"tmt/pkg/logging"
)

const resultsFile = "results"

// ExecuteStep runs discovered tests and records their results.
type ExecuteStep struct {
	*Step

	mu      sync.Mutex
	results []Result
}

// NewExecute creates the execute step.
func NewExecute(plan Plan, data interface{}, logger *logging.Logger, opts ...Option) *ExecuteStep {
	e := &ExecuteStep{Step: New(Execute, plan, data, logger, opts...)}
	e.Step.state = e
	return e
}

// Results returns the recorded results.
func (e *ExecuteStep) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Record stores a result, replacing an earlier one for the same test and
// guest.
func (e *ExecuteStep) Record(r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.results {
		if existing.key() == r.key() && (existing.Guest == r.Guest || existing.Outcome == OutcomePending) {
			e.results[i] = r
			return
		}
	}
	e.results = append(e.results, r)
}

// SyncResults aligns the results with tests: results of tests no longer
// discovered are dropped and tests without a result get a pending one.
func (e *ExecuteStep) SyncResults(tests []Test) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byKey := map[string][]Result{}
	for _, r := range e.results {
		byKey[r.key()] = append(byKey[r.key()], r)
	}
	results := make([]Result, 0, len(tests))
	for _, t := range tests {
		pending := Result{Name: t.Name, Serial: t.Serial, Outcome: OutcomePending}
		if existing, ok := byKey[pending.key()]; ok {
			results = append(results, existing...)
			continue
		}
		results = append(results, pending)
	}
	e.results = results
}

// Failed reports whether any result is a failure or an error.
func (e *ExecuteStep) Failed() bool {
	for _, r := range e.Results() {
		if r.Outcome == OutcomeFail || r.Outcome == OutcomeError {
			return true
		}
	}
	return false
}

// Execute results survive re-running the step: SyncResults owns their
// lifecycle.
func (e *ExecuteStep) reset() {}

func (e *ExecuteStep) files() []string { return []string{resultsFile} }

func (e *ExecuteStep) load(storage *workdir.Storage, section string) error {
	var results []Result
	if err := storage.Load(section, resultsFile, &results); err != nil {
		if errors.Is(err, workdir.ErrNotFound) {
			return nil
		}
		return err
	}
	e.mu.Lock()
	e.results = results
	e.mu.Unlock()
	return nil
}

func (e *ExecuteStep) save(storage *workdir.Storage, section string) error {
	return storage.Save(section, resultsFile, e.Results())
}
