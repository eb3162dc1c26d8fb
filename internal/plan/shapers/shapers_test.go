package shapers

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/plan"
	"tmt/internal/step"
	_ "tmt/internal/step/discover"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRun struct {
	workdir  string
	options  plan.Options
	swapped  []*plan.Plan
	policies int
}

func (r *fakeRun) Workdir() string                      { return r.workdir }
func (r *fakeRun) Environment() environment.Environment { return nil }
func (r *fakeRun) Options() plan.Options                { return r.options }
func (r *fakeRun) Fetcher() plan.Fetcher                { return nil }

func (r *fakeRun) SwapPlans(original *plan.Plan, replacements []*plan.Plan) error {
	r.swapped = replacements
	return nil
}

func (r *fakeRun) ApplyPolicies(plans []*plan.Plan) error {
	r.policies += len(plans)
	return nil
}

func newPlan(t *testing.T, options plan.Options) (*plan.Plan, *fakeRun) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fmf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fmf", "version"), []byte("1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.fmf"), []byte("discover: {how: shell}\nexecute: {how: tmt}\n"), 0644))
	tree, err := fmf.Load(dir)
	require.NoError(t, err)

	run := &fakeRun{workdir: t.TempDir(), options: options}
	node, ok := tree.Node("/plan")
	require.True(t, ok)
	p, err := plan.New(node, tree, run, nil)
	require.NoError(t, err)
	return p, run
}

func someTests(n int) []step.Test {
	tests := make([]step.Test, n)
	for i := range tests {
		tests[i] = step.Test{Name: fmt.Sprintf("/test/%d", i+1), Serial: i + 1, Test: "true"}
	}
	return tests
}

func TestMaxTests(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		count  int
		check  bool
		chunks []int
	}{
		{name: "disabled", limit: 0, count: 5, check: false},
		{name: "within limit", limit: 5, count: 5, check: false},
		{name: "even split", limit: 2, count: 4, check: true, chunks: []int{2, 2}},
		{name: "remainder", limit: 2, count: 5, check: true, chunks: []int{2, 2, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newPlan(t, plan.Options{MaxTests: tc.limit})
			discovered := someTests(tc.count)

			assert.Equal(t, tc.check, MaxTests{}.Check(p, discovered))
			if !tc.check {
				return
			}
			plans, err := MaxTests{}.Apply(p, discovered)
			require.NoError(t, err)
			require.Len(t, plans, len(tc.chunks))

			var all []step.Test
			for i, derived := range plans {
				assert.Len(t, derived.Discover().Tests(), tc.chunks[i])
				assert.Equal(t, step.StatusDone, derived.Discover().Status())
				all = append(all, derived.Discover().Tests()...)
			}
			assert.Equal(t, discovered, all)
			assert.Equal(t, "/plan.1", plans[0].Name())
		})
	}
}

func TestRepeat(t *testing.T) {
	p, _ := newPlan(t, plan.Options{Repeat: 1})
	assert.False(t, Repeat{}.Check(p, someTests(2)))

	p, _ = newPlan(t, plan.Options{Repeat: 3})
	discovered := someTests(2)
	require.True(t, Repeat{}.Check(p, discovered))

	plans, err := Repeat{}.Apply(p, discovered)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	for i, derived := range plans {
		assert.Equal(t, discovered, derived.Discover().Tests())
		assert.True(t, derived.IsDerived())
		assert.Equal(t, fmt.Sprintf("/plan.%d", i+1), derived.Name())
	}
}

func TestReshape_FirstMatchingShaperWins(t *testing.T) {
	p, run := newPlan(t, plan.Options{MaxTests: 1, Repeat: 3})

	replaced, err := p.Reshape(someTests(2))
	require.NoError(t, err)
	assert.True(t, replaced)
	require.Len(t, run.swapped, 2, "max-tests applies before repeat")
	assert.Equal(t, 2, run.policies)
}

func TestReshape_DerivedPlansAreFinal(t *testing.T) {
	p, run := newPlan(t, plan.Options{Repeat: 2})
	plans, err := Repeat{}.Apply(p, someTests(1))
	require.NoError(t, err)

	replaced, err := plans[0].Reshape(someTests(1))
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Empty(t, run.swapped)
}
