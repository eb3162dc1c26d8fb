package step

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/workdir"
	"tmt/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Plan is the view of the owning plan available to steps and plugins.
type Plan interface {
	Name() string
	// Workdir is the plan workdir, empty until initialized.
	Workdir() string
	// Worktree is the copy of the metadata tree tests run in.
	Worktree() string
	DataDir() string
	Node() *fmf.Node
	Environment() environment.Environment
	Context() fmf.Context
	DryRun() bool
	Force() bool
	StepEnabled(name string) bool

	// Steps returns all steps in pipeline order.
	Steps() []*Step
	Discover() *DiscoverStep
	Provision() *ProvisionStep
	Execute() *ExecuteStep
}

const stepFile = "step"

type persistedStep struct {
	Status Status      `yaml:"status"`
	Data   []PhaseData `yaml:"data"`
}

// state is the step-specific data persisted next to the step status.
type state interface {
	reset()
	load(storage *workdir.Storage, section string) error
	save(storage *workdir.Storage, section string) error
	files() []string
}

// Step is one stage of a plan.
type Step struct {
	name     string
	plan     Plan
	logger   *logging.Logger
	registry *Registry

	// data is the raw step value from the plan metadata.
	data      interface{}
	raw       []PhaseData
	phases    []Phase
	status    Status
	awake     bool
	pinned    bool
	overrides []Override
	state     state
}

// Option configures a Step.
type Option func(*Step)

// WithRegistry makes the step look up plugins in r instead of Plugins.
func WithRegistry(r *Registry) Option {
	return func(s *Step) { s.registry = r }
}

// New creates a step. data is the value of the step key in the plan
// metadata: nil, a mapping, or a list of mappings.
func New(name string, plan Plan, data interface{}, logger *logging.Logger, opts ...Option) *Step {
	s := &Step{
		name:     name,
		plan:     plan,
		data:     data,
		logger:   logger.Descend(name),
		registry: Plugins,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Step) Name() string            { return s.name }
func (s *Step) Plan() Plan              { return s.plan }
func (s *Step) Logger() *logging.Logger { return s.logger }
func (s *Step) Status() Status          { return s.status }
func (s *Step) Awake() bool             { return s.awake }

// Enabled reports whether the step runs in this invocation.
func (s *Step) Enabled() bool {
	return s.plan.StepEnabled(s.name)
}

// Workdir is the step directory below the plan workdir.
func (s *Step) Workdir() string {
	if s.plan.Workdir() == "" {
		return ""
	}
	return filepath.Join(s.plan.Workdir(), s.name)
}

// SetStatus changes the status. Only StatusNone, StatusRunning and StatusDone
// are accepted.
func (s *Step) SetStatus(status Status) error {
	if !status.valid() {
		return NewGeneralError(nil, "invalid status '%s' of step %s", status, s.name)
	}
	s.status = status
	return nil
}

// Pin keeps a done step done: Go skips it even when the plan forces
// re-running. Derived plans pin the tests they were given.
func (s *Step) Pin() { s.pinned = true }

// AddOverride queues an override to be applied on Wake.
func (s *Step) AddOverride(o Override) {
	s.overrides = append(s.overrides, o)
}

// Raw returns the normalized phase configuration. Available after Wake.
func (s *Step) Raw() []PhaseData {
	out := make([]PhaseData, len(s.raw))
	for i, d := range s.raw {
		out[i] = d.Copy()
	}
	return out
}

// Phases returns the instantiated phases in execution order.
func (s *Step) Phases() []Phase {
	return append([]Phase(nil), s.phases...)
}

// PluginsInStandaloneMode counts the phases which require running alone.
func (s *Step) PluginsInStandaloneMode() int {
	count := 0
	for _, p := range s.phases {
		if p.Standalone() {
			count++
		}
	}
	return count
}

// Wake applies overrides, instantiates phases and restores persisted state.
// Calling Wake again is a no-op.
func (s *Step) Wake() error {
	if s.awake {
		return nil
	}

	raw, err := normalizePhases(s.name, s.data)
	if err != nil {
		return NewSpecificationError(err, "invalid %s step data in plan '%s'", s.name, s.plan.Name())
	}
	for _, o := range s.overrides {
		if raw, err = o.apply(s.name, raw); err != nil {
			return NewSpecificationError(err, "cannot apply %s override", s.name)
		}
	}
	assignDefaults(raw)
	s.raw = raw

	if err := s.Load(); err != nil {
		return err
	}

	phases := make([]Phase, 0, len(raw))
	for _, data := range raw {
		if !data.Bool("enabled", true) {
			s.logger.Debug("Phase '%s' is disabled", data.String("name", ""))
			continue
		}
		how := data.String("how", "")
		factory, ok := s.registry.Lookup(s.name, how)
		if !ok {
			return NewSpecificationError(nil, "unsupported %s method '%s' in plan '%s' (supported: %s)",
				s.name, how, s.plan.Name(), strings.Join(s.registry.Methods(s.name), ", "))
		}
		phase, err := factory(s, data.Copy(), s.logger.Descend(data.String("name", "")))
		if err != nil {
			return NewSpecificationError(err, "invalid %s phase '%s'", s.name, data.String("name", ""))
		}
		if err := phase.Wake(); err != nil {
			return err
		}
		phases = append(phases, phase)
	}
	s.phases = phases
	s.awake = true
	return s.Save()
}

// Go runs all phases in order. A step already done is skipped unless the
// plan forces re-running.
func (s *Step) Go(ctx context.Context) error {
	if !s.awake {
		return NewGeneralError(nil, "step %s of plan '%s' is not awake", s.name, s.plan.Name())
	}
	if s.status == StatusDone && (s.pinned || !s.plan.Force()) {
		s.logger.Info("status: done")
		return nil
	}

	if s.state != nil {
		s.state.reset()
	}
	s.status = StatusRunning
	if err := s.Save(); err != nil {
		return err
	}

	for _, phase := range s.phases {
		s.logger.Info("%s (%s)", phase.Name(), phase.How())
		if err := phase.Go(ctx); err != nil {
			return fmt.Errorf("%s phase '%s' failed: %w", s.name, phase.Name(), err)
		}
	}

	s.status = StatusDone
	return s.Save()
}

// Suspend releases resources held by the phases.
func (s *Step) Suspend() {
	for _, phase := range s.phases {
		if sp, ok := phase.(Suspender); ok {
			sp.Suspend()
		}
	}
}

// Show renders the phase configuration.
func (s *Step) Show() string {
	raw := s.raw
	if !s.awake {
		var err error
		if raw, err = normalizePhases(s.name, s.data); err != nil {
			return fmt.Sprintf("%s: invalid data (%v)", s.name, err)
		}
		assignDefaults(raw)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.name)
	for _, data := range raw {
		fmt.Fprintf(&b, "    %s (%s)\n", data.String("name", ""), data.String("how", ""))
		keys := make([]string, 0, len(data))
		for k := range data {
			switch k {
			case "name", "how":
			default:
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "        %s: %v\n", k, data[k])
		}
	}
	return b.String()
}

func (s *Step) storage() (*workdir.Storage, error) {
	if s.plan.Workdir() == "" {
		return nil, NewGeneralError(nil, "workdir of plan '%s' is not initialized", s.plan.Name())
	}
	return workdir.NewStorage(s.plan.Workdir()), nil
}

// Load restores status and step state from the step workdir. Status is
// reset when the phase configuration changed since it was saved.
func (s *Step) Load() error {
	storage, err := s.storage()
	if err != nil {
		return err
	}

	var saved persistedStep
	if err := storage.Load(s.name, stepFile, &saved); err != nil {
		if errors.Is(err, workdir.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.SetStatus(saved.Status); err != nil {
		return err
	}
	if s.status != StatusNone && !sameData(saved.Data, s.raw) {
		s.logger.Info("step data changed, resetting status")
		s.status = StatusNone
		return nil
	}
	if s.state != nil {
		return s.state.load(storage, s.name)
	}
	return nil
}

// Save persists status, phase configuration and step state.
func (s *Step) Save() error {
	storage, err := s.storage()
	if err != nil {
		return err
	}
	if err := storage.Save(s.name, stepFile, persistedStep{Status: s.status, Data: s.raw}); err != nil {
		return err
	}
	if s.state != nil {
		return s.state.save(storage, s.name)
	}
	return nil
}

// Prune removes everything from the step workdir except the persisted
// files later steps and reports rely on.
func (s *Step) Prune() error {
	dir := s.Workdir()
	if dir == "" {
		return nil
	}
	keep := map[string]bool{stepFile + ".yaml": true}
	if s.state != nil {
		for _, f := range s.state.files() {
			keep[f+".yaml"] = true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if keep[entry.Name()] {
			continue
		}
		s.logger.Debug("Removing %s", entry.Name())
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to prune %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func normalizePhases(stepName string, value interface{}) ([]PhaseData, error) {
	var items []interface{}
	switch v := value.(type) {
	case nil:
		items = []interface{}{map[string]interface{}{}}
	case map[string]interface{}:
		items = []interface{}{v}
	case []interface{}:
		items = v
		if len(items) == 0 {
			items = []interface{}{map[string]interface{}{}}
		}
	default:
		return nil, fmt.Errorf("expected a mapping or a list of mappings, got %T", value)
	}

	out := make([]PhaseData, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("phase %d: expected a mapping, got %T", i, item)
		}
		data := PhaseData(fmf.DeepCopy(m).(map[string]interface{}))
		if data.String("how", "") == "" {
			data["how"] = DefaultHow[stepName]
		}
		if _, ok := data["order"]; ok && data.Int("order", -1) == -1 {
			return nil, fmt.Errorf("phase %d: order must be an integer", i)
		}
		out = append(out, data)
	}
	return out, nil
}

// assignDefaults names unnamed phases and sorts them by order, keeping the
// declared order for ties.
func assignDefaults(phases []PhaseData) {
	for i, data := range phases {
		if data.String("name", "") == "" {
			data["name"] = fmt.Sprintf("default-%d", i)
		}
		if _, ok := data["order"]; !ok {
			data["order"] = DefaultOrder
		}
	}
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Int("order", DefaultOrder) < phases[j].Int("order", DefaultOrder)
	})
}

func sameData(a, b []PhaseData) bool {
	ya, errA := yaml.Marshal(a)
	yb, errB := yaml.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ya, yb)
}
