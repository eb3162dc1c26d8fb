package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/step"
	"tmt/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakePhase records its step name on Go. Discover phases report the names
// listed in "tests" as discovered; "fail: true" makes Go fail.
type fakePhase struct {
	step.BasePhase
	rec *recorder
}

func (f *fakePhase) Go(ctx context.Context) error {
	f.rec.add(f.Step().Name())
	if f.Step().Name() == step.Discover {
		var tests []step.Test
		for _, name := range f.GetStrings("tests") {
			tests = append(tests, step.Test{Name: name, Test: "true"})
		}
		f.Step().Plan().Discover().AddTests(f.Name(), tests)
	}
	if f.GetBool("fail") {
		return errors.New("phase failed")
	}
	return nil
}

// fakeRegistry registers a recording phase under the default how of every
// step.
func fakeRegistry(t *testing.T, rec *recorder) *step.Registry {
	t.Helper()
	r := step.NewRegistry()
	factory := func(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
		return &fakePhase{BasePhase: step.NewBasePhase(s, data, logger, nil), rec: rec}, nil
	}
	for _, name := range step.Names {
		require.NoError(t, r.Register(name, step.DefaultHow[name], factory))
	}
	return r
}

type fakeRun struct {
	workdir string
	env     environment.Environment
	options Options
	fetcher Fetcher

	// policy is added to the steps of every plan passed to ApplyPolicies.
	policy map[string]step.Override

	mu       sync.Mutex
	swapped  map[string][]*Plan
	policies int
}

func newFakeRun(t *testing.T) *fakeRun {
	return &fakeRun{workdir: t.TempDir(), swapped: map[string][]*Plan{}}
}

func (r *fakeRun) Workdir() string                      { return r.workdir }
func (r *fakeRun) Environment() environment.Environment { return r.env }
func (r *fakeRun) Options() Options                     { return r.options }
func (r *fakeRun) Fetcher() Fetcher                     { return r.fetcher }

func (r *fakeRun) SwapPlans(original *Plan, replacements []*Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swapped[original.Name()] = replacements
	return nil
}

func (r *fakeRun) ApplyPolicies(plans []*Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies += len(plans)
	for _, p := range plans {
		for name, o := range r.policy {
			if s, ok := p.Step(name); ok {
				s.AddOverride(o)
			}
		}
	}
	return nil
}

// writeTree creates a metadata tree from file contents keyed by relative
// path.
func writeTree(t *testing.T, dir string, files map[string]string) *fmf.Tree {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fmf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fmf", "version"), []byte("1\n"), 0644))
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	tree, err := fmf.Load(dir)
	require.NoError(t, err)
	return tree
}

func newPlan(t *testing.T, tree *fmf.Tree, name string, run Run, rec *recorder, opts ...Option) *Plan {
	t.Helper()
	node, ok := tree.Node(name)
	require.True(t, ok, "node %s", name)
	opts = append(opts, WithStepOptions(step.WithRegistry(fakeRegistry(t, rec))))
	p, err := New(node, tree, run, nil, opts...)
	require.NoError(t, err)
	return p
}

const basicPlan = `
discover:
    tests: [/tests/a, /tests/b]
execute:
    how: tmt
`

func TestNew_InitializesWorkdir(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/smoke.fmf": basicPlan,
		"tests/a.sh":      "true",
	})
	run := newFakeRun(t)
	p := newPlan(t, tree, "/plans/smoke", run, &recorder{})

	assert.Equal(t, filepath.Join(run.workdir, "plans", "smoke"), p.Workdir())
	assert.FileExists(t, filepath.Join(p.DataDir(), "variables.env"))
	assert.FileExists(t, filepath.Join(p.DataDir(), "plan-source-script.sh"))
	assert.FileExists(t, filepath.Join(p.Worktree(), "tests", "a.sh"))
	assert.Len(t, p.Steps(), 7)
	assert.False(t, p.IsRemotePlanReference())
}

func TestNew_WithoutRunHasNoWorkdir(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/smoke.fmf": basicPlan})
	p := newPlan(t, tree, "/plans/smoke", nil, &recorder{})

	assert.Empty(t, p.Workdir())
	assert.Empty(t, p.Worktree())
	assert.Equal(t, Version, p.Environment()["TMT_VERSION"])
	assert.NotContains(t, p.Environment(), "TMT_PLAN_DATA")
}

func TestNew_InvalidMetadata(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/env.fmf": "environment: [a, b]\nexecute: {how: tmt}\n",
		"plans/ctx.fmf": "context: distro\nexecute: {how: tmt}\n",
		"plans/imp.fmf": "plan:\n    import:\n        url: https://example.org/repo\n        scope: some\n",
	})
	for _, name := range []string{"/plans/env", "/plans/ctx", "/plans/imp"} {
		node, _ := tree.Node(name)
		_, err := New(node, tree, nil, nil)
		var specErr *SpecificationError
		assert.ErrorAs(t, err, &specErr, name)
	}
}

func TestEnvironmentPrecedence(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/env.fmf": `
environment:
    A: fmf
    B: fmf
    C: fmf
    D: fmf
    TMT_VERSION: fmf
environment-file: [vars.env]
execute:
    how: tmt
`,
		"vars.env": "H=file-from-metadata\nA=overridden-by-metadata\n",
	})
	run := newFakeRun(t)
	run.options.Environment = environment.Environment{"C": "cli", "D": "cli", "TMT_TREE": "cli"}
	run.env = environment.Environment{"D": "run", "F": "run"}

	p := newPlan(t, tree, "/plans/env", run, &recorder{},
		WithInheritedEnvironment(environment.Environment{"B": "import", "C": "import", "E": "import"}))
	require.NoError(t, os.WriteFile(p.EnvironmentFile(), []byte("A=plan-file\nG=plan-file\n"), 0644))

	env := p.Environment()
	assert.Equal(t, "fmf", env["A"])
	assert.Equal(t, "import", env["B"])
	assert.Equal(t, "cli", env["C"])
	assert.Equal(t, "run", env["D"])
	assert.Equal(t, "import", env["E"])
	assert.Equal(t, "run", env["F"])
	assert.Equal(t, "plan-file", env["G"])
	assert.Equal(t, "file-from-metadata", env["H"])
	assert.Equal(t, Version, env["TMT_VERSION"])
	assert.Equal(t, p.Worktree(), env["TMT_TREE"])
	assert.Equal(t, p.DataDir(), env["TMT_PLAN_DATA"])
	assert.Equal(t, p.EnvironmentFile(), env["TMT_PLAN_ENVIRONMENT_FILE"])
	assert.Equal(t, p.SourceScript(), env["TMT_PLAN_SOURCE_SCRIPT"])

	assert.Equal(t, "command line", environment.Source("C", p.EnvironmentLayers()...))
}

func TestInheritableEnvironmentExcludesCommandLineAndRun(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/env.fmf": "environment: {A: fmf}\nexecute: {how: tmt}\n",
	})
	run := newFakeRun(t)
	run.options.Environment = environment.Environment{"CLI_ONLY": "x", "A": "cli"}
	run.env = environment.Environment{"RUN_ONLY": "y"}

	p := newPlan(t, tree, "/plans/env", run, &recorder{},
		WithInheritedEnvironment(environment.Environment{"IMPORTED": "z"}))

	inheritable := p.InheritableEnvironment()
	assert.Equal(t, environment.Environment{"A": "fmf", "IMPORTED": "z"}, inheritable)
	assert.Equal(t, "cli", p.Environment()["A"])
}

func TestEnvironmentIsPure(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/env.fmf": "environment: {A: fmf}\nexecute: {how: tmt}\n"})
	p := newPlan(t, tree, "/plans/env", newFakeRun(t), &recorder{})

	env := p.Environment()
	env["A"] = "mutated"
	assert.Equal(t, "fmf", p.Environment()["A"])

	require.NoError(t, os.WriteFile(p.EnvironmentFile(), []byte("LATE=1\n"), 0644))
	assert.Equal(t, "1", p.Environment()["LATE"], "environment file is read on every access")
}

func TestContextComposition(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/ctx.fmf": "context: {distro: fedora, component: [a, b]}\nexecute: {how: tmt}\n",
	})
	run := newFakeRun(t)
	run.options.Context = fmf.Context{"distro": {"rhel-9"}}

	p := newPlan(t, tree, "/plans/ctx", run, &recorder{},
		WithInheritedContext(fmf.Context{"arch": {"aarch64"}, "component": {"c"}}))

	assert.Equal(t, fmf.Context{"distro": {"rhel-9"}, "arch": {"aarch64"}, "component": {"c"}}, p.Context())
	assert.Equal(t, fmf.Context{"distro": {"fedora"}, "arch": {"aarch64"}, "component": {"c"}}, p.InheritableContext())
}

func TestGo_RunsStepsInOrder(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/smoke.fmf": basicPlan})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/smoke", newFakeRun(t), rec)

	require.NoError(t, p.Go(context.Background()))

	assert.Equal(t, []string{"discover", "provision", "prepare", "execute", "report", "finish", "cleanup"}, rec.Calls())
	for _, s := range p.Steps() {
		assert.Equal(t, step.StatusDone, s.Status(), s.Name())
	}
	results := p.Execute().Results()
	require.Len(t, results, 2)
	assert.Equal(t, step.OutcomePending, results[0].Outcome)
	assert.FileExists(t, filepath.Join(p.Workdir(), "execute", "results.yaml"))
}

func TestGo_ResumesDoneSteps(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/smoke.fmf": basicPlan})
	run := newFakeRun(t)
	rec := &recorder{}
	require.NoError(t, newPlan(t, tree, "/plans/smoke", run, rec).Go(context.Background()))

	again := &recorder{}
	p := newPlan(t, tree, "/plans/smoke", run, again)
	require.NoError(t, p.Go(context.Background()))
	assert.Empty(t, again.Calls())
	assert.Len(t, p.Discover().Tests(), 2)
}

func TestGo_StandaloneConflictAcrossSteps(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/standalone.fmf": `
discover:
    tests: [/tests/a]
prepare:
    standalone: true
execute:
    how: tmt
    standalone: true
`,
	})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/standalone", newFakeRun(t), rec)

	err := p.Go(context.Background())
	var generalErr *GeneralError
	require.ErrorAs(t, err, &generalErr)
	assert.Contains(t, err.Error(), "execute, prepare")
	assert.Empty(t, rec.Calls())
}

func TestGo_StandaloneConflictWithinStep(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/standalone.fmf": `
prepare:
  - standalone: true
  - standalone: true
execute:
    how: tmt
`,
	})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/standalone", newFakeRun(t), rec)

	var generalErr *GeneralError
	require.ErrorAs(t, p.Go(context.Background()), &generalErr)
	assert.Empty(t, rec.Calls())
}

func TestGo_SingleStandaloneStepRunsAlone(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/standalone.fmf": `
discover:
    tests: [/tests/a]
provision:
    standalone: true
execute:
    how: tmt
`,
	})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/standalone", newFakeRun(t), rec)

	require.NoError(t, p.Go(context.Background()))
	assert.Equal(t, []string{"provision"}, rec.Calls())
	assert.False(t, p.StepEnabled(step.Cleanup))
}

func TestGo_NoTestsSkipsExecution(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/empty.fmf": "discover:\n    tests: []\nexecute:\n    how: tmt\n",
	})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/empty", newFakeRun(t), rec)

	require.NoError(t, p.Go(context.Background()))
	assert.Equal(t, []string{"discover", "report", "cleanup"}, rec.Calls())
}

func TestGo_NoTestsHonorsDisabledReport(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/empty.fmf": "discover:\n    tests: []\nexecute:\n    how: tmt\n",
	})
	run := newFakeRun(t)
	run.options.Steps = []string{step.Discover, step.Cleanup}
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/empty", run, rec)

	require.NoError(t, p.Go(context.Background()))
	assert.Equal(t, []string{"discover", "cleanup"}, rec.Calls())
}

func TestGo_NoTestsInDryRunContinues(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/empty.fmf": "discover:\n    tests: []\nexecute:\n    how: tmt\n",
	})
	run := newFakeRun(t)
	run.options.DryRun = true
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/empty", run, rec)

	require.NoError(t, p.Go(context.Background()))
	assert.Len(t, rec.Calls(), 7)
}

func TestGo_FailureStillReportsAndCleansUp(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/broken.fmf": `
discover:
    tests: [/tests/a]
prepare:
    fail: true
execute:
    how: tmt
`,
	})
	rec := &recorder{}
	p := newPlan(t, tree, "/plans/broken", newFakeRun(t), rec)

	err := p.Go(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase failed")
	assert.Equal(t, []string{"discover", "provision", "prepare", "report", "cleanup"}, rec.Calls())
}

func TestWake_DisabledStepWithInvalidData(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/bad.fmf": "discover:\n    tests: [/a]\nfinish:\n    how: unknown\nexecute:\n    how: tmt\n",
	})

	run := newFakeRun(t)
	run.options.Steps = []string{step.Discover}
	p := newPlan(t, tree, "/plans/bad", run, &recorder{})
	assert.NoError(t, p.Wake())

	enabled := newPlan(t, tree, "/plans/bad", newFakeRun(t), &recorder{})
	var specErr *SpecificationError
	assert.ErrorAs(t, enabled.Wake(), &specErr)
}

func TestNew_AppliesCommandLineOverrides(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/smoke.fmf": basicPlan})
	run := newFakeRun(t)
	run.options.Overrides = map[string][]step.Override{
		step.Prepare: {{Insert: true, Name: "extra"}},
	}
	p := newPlan(t, tree, "/plans/smoke", run, &recorder{})
	require.NoError(t, p.Wake())
	assert.Len(t, p.Prepare().Phases(), 2)

	run.options.Overrides = map[string][]step.Override{"deploy": {{How: "x"}}}
	node, _ := tree.Node("/plans/smoke")
	_, err := New(node, tree, run, nil)
	var generalErr *GeneralError
	assert.ErrorAs(t, err, &generalErr)
}

func TestShow(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{
		"plans/smoke.fmf": "summary: Quick checks\nenvironment: {A: b}\n" + basicPlan,
	})
	p := newPlan(t, tree, "/plans/smoke", nil, &recorder{})

	out := p.Show()
	assert.Contains(t, out, "/plans/smoke")
	assert.Contains(t, out, "summary Quick checks")
	assert.Contains(t, out, "execute")
	assert.Contains(t, out, "A: b")
}
