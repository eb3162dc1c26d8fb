package plan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves repositories from local directories keyed by url.
type fakeFetcher struct {
	repos map[string]string

	mu        sync.Mutex
	clones    int
	shallow   int
	checkouts []string
	cached    []fmf.ID
}

func (f *fakeFetcher) Clone(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	f.mu.Lock()
	f.clones++
	f.mu.Unlock()
	return copyDir(f.repos[url], dest, "")
}

func (f *fakeFetcher) ShallowClone(ctx context.Context, url, dest string) error {
	f.mu.Lock()
	f.shallow++
	f.mu.Unlock()
	return copyDir(f.repos[url], dest, "")
}

func (f *fakeFetcher) Checkout(ctx context.Context, dir, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, ref)
	return nil
}

func (f *fakeFetcher) FetchCached(ctx context.Context, id fmf.ID) (*fmf.Tree, error) {
	f.mu.Lock()
	f.cached = append(f.cached, id)
	f.mu.Unlock()
	tree, err := fmf.Load(filepath.Join(f.repos[id.URL], id.Path))
	if err != nil {
		return nil, err
	}
	tree.URL, tree.Ref, tree.Path = id.URL, id.Ref, id.Path
	return tree, nil
}

const remoteURL = "https://example.org/remote.git"

type importFixture struct {
	tree    *fmf.Tree
	run     *fakeRun
	fetcher *fakeFetcher
	rec     *recorder
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	remote := t.TempDir()
	writeTree(t, remote, map[string]string{
		"plans/a.fmf": "summary: Remote A\nenvironment: {R: remote}\ndiscover: {tests: [/x]}\nexecute: {how: tmt}\n",
		"plans/b.fmf": "summary: Remote B\ndiscover: {tests: [/y]}\nexecute: {how: tmt}\n",
		"ref.yaml": `
ref: main
adjust:
  - when: distro == fedora
    ref: "{{ .environment.BRANCH }}"
`,
	})

	local := writeTree(t, t.TempDir(), map[string]string{
		"plans/single.fmf":      importPlan("name: /plans/a", "environment: {X: importer}", "context: {distro: fedora}"),
		"plans/all.fmf":         importPlan("name: /plans/\n        scope: all-plans\n        importing: become-parent"),
		"plans/first.fmf":       importPlan("name: /plans/"),
		"plans/strict.fmf":      importPlan("name: /plans/\n        scope: single-plan-only"),
		"plans/replace-all.fmf": importPlan("name: /plans/\n        scope: all-plans"),
		"plans/missing.fmf":     importPlan("name: /nothing"),
		"plans/disabled.fmf":    importPlan("name: /plans/a", "enabled: false"),
		"plans/isolated.fmf": importPlan(
			"name: /plans/a\n        inherit-environment: false\n        inherit-context: false",
			"environment: {X: importer}", "context: {distro: fedora}"),
		"plans/adjusting.fmf": importPlan(
			"name: /plans/a\n        adjust-plans:\n          - when: distro == fedora\n            summary: Adjusted",
			"context: {distro: fedora}"),
		"plans/dynamic.fmf": importPlan("name: /plans/a\n        ref: \"@ref.yaml\"", "context: {distro: fedora}"),
		"plans/local.fmf": `
plan:
    import:
        name: /plans/local-target
`,
		"plans/local-target.fmf": "summary: Local target\nexecute: {how: tmt}\n",
	})

	f := &fakeFetcher{repos: map[string]string{remoteURL: remote}}
	run := newFakeRun(t)
	run.fetcher = f
	return &importFixture{tree: local, run: run, fetcher: f, rec: &recorder{}}
}

func importPlan(importKeys string, extra ...string) string {
	out := "plan:\n    import:\n        url: " + remoteURL + "\n        " + importKeys + "\n"
	for _, e := range extra {
		out += e + "\n"
	}
	return out
}

func (f *importFixture) plan(t *testing.T, name string) *Plan {
	return newPlan(t, f.tree, name, f.run, f.rec)
}

func TestResolveImports_RegularPlan(t *testing.T) {
	tree := writeTree(t, t.TempDir(), map[string]string{"plans/smoke.fmf": basicPlan})
	p := newPlan(t, tree, "/plans/smoke", newFakeRun(t), &recorder{})

	plans, err := p.ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Same(t, p, plans[0])
}

func TestResolveImports_Replace(t *testing.T) {
	f := newImportFixture(t)
	p := f.plan(t, "/plans/single")
	require.True(t, p.IsRemotePlanReference())
	assert.Empty(t, p.Workdir())

	plans, err := p.ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)

	imported := plans[0]
	assert.Equal(t, "/plans/single", imported.Name())
	assert.Equal(t, "Remote A", imported.Summary())
	assert.Same(t, p, imported.OriginalPlan())
	require.NotNil(t, imported.OriginalPlanFmfID())
	assert.Equal(t, p.FmfID(), *imported.OriginalPlanFmfID())
	assert.Equal(t, remoteURL, imported.Tree().URL)
	assert.Equal(t, filepath.Join(f.run.workdir, "plans", "single"), imported.Workdir())
	assert.FileExists(t, filepath.Join(imported.Worktree(), "plans", "a.fmf"))
	assert.DirExists(t, filepath.Join(f.run.workdir, "import", p.SafeName()))
	assert.Equal(t, 1, f.fetcher.clones)
	assert.Empty(t, f.fetcher.cached)
}

func TestResolveImports_Memoized(t *testing.T) {
	f := newImportFixture(t)
	p := f.plan(t, "/plans/single")

	first, err := p.ResolveImports(context.Background())
	require.NoError(t, err)
	second, err := p.ResolveImports(context.Background())
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, 1, f.fetcher.clones)
}

func TestResolveImports_AllPlansBecomeParent(t *testing.T) {
	f := newImportFixture(t)
	p := f.plan(t, "/plans/all")

	plans, err := p.ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "/plans/all/plans/a", plans[0].Name())
	assert.Equal(t, "/plans/all/plans/b", plans[1].Name())
	for _, imported := range plans {
		assert.Same(t, p, imported.OriginalPlan())
		assert.Equal(t, p.FmfID(), *imported.OriginalPlanFmfID())
	}
	assert.NotEqual(t, plans[0].Workdir(), plans[1].Workdir())
}

func TestResolveImports_FirstPlanOnly(t *testing.T) {
	var buf bytes.Buffer
	logging.InitForCLI(logging.LevelWarn, &buf)
	defer logging.InitForCLI(logging.LevelWarn, os.Stderr)

	f := newImportFixture(t)
	plans, err := f.plan(t, "/plans/first").ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Remote A", plans[0].Summary())
	assert.Contains(t, buf.String(), "/plans/b")
}

func TestResolveImports_ScopeErrors(t *testing.T) {
	for _, name := range []string{"/plans/strict", "/plans/replace-all"} {
		t.Run(name, func(t *testing.T) {
			f := newImportFixture(t)
			plans, err := f.plan(t, name).ResolveImports(context.Background())
			assert.Nil(t, plans)

			var resolutionErr *ResolutionError
			require.ErrorAs(t, err, &resolutionErr)
			assert.Equal(t, name, resolutionErr.Plan)
			var generalErr *GeneralError
			assert.ErrorAs(t, err, &generalErr)
			assert.NoDirExists(t, filepath.Join(f.run.workdir, "plans"), "no imported plan is created")
		})
	}
}

func TestResolveImports_NoMatch(t *testing.T) {
	f := newImportFixture(t)
	_, err := f.plan(t, "/plans/missing").ResolveImports(context.Background())
	var resolutionErr *ResolutionError
	require.ErrorAs(t, err, &resolutionErr)
	assert.Contains(t, err.Error(), "no plans matching")
}

func TestResolveImports_Inheritance(t *testing.T) {
	f := newImportFixture(t)
	f.run.options.Environment = environment.Environment{"CLI": "1"}

	plans, err := f.plan(t, "/plans/single").ResolveImports(context.Background())
	require.NoError(t, err)
	imported := plans[0]

	assert.Equal(t, environment.Environment{"R": "remote", "X": "importer"}, imported.InheritableEnvironment())
	assert.Equal(t, "1", imported.Environment()["CLI"])
	assert.Equal(t, []string{"fedora"}, imported.Context()["distro"])

	plans, err = f.plan(t, "/plans/isolated").ResolveImports(context.Background())
	require.NoError(t, err)
	isolated := plans[0]
	assert.NotContains(t, isolated.Environment(), "X")
	assert.Equal(t, "1", isolated.Environment()["CLI"])
	assert.NotContains(t, isolated.Context(), "distro")
}

func TestResolveImports_DisabledImporter(t *testing.T) {
	f := newImportFixture(t)
	plans, err := f.plan(t, "/plans/disabled").ResolveImports(context.Background())
	require.NoError(t, err)
	assert.False(t, plans[0].Enabled())
}

func TestResolveImports_AdjustPlans(t *testing.T) {
	f := newImportFixture(t)
	plans, err := f.plan(t, "/plans/adjusting").ResolveImports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Adjusted", plans[0].Summary())
}

func TestResolveImports_LocalTree(t *testing.T) {
	f := newImportFixture(t)
	plans, err := f.plan(t, "/plans/local").ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "/plans/local", plans[0].Name())
	assert.Equal(t, "Local target", plans[0].Summary())
	assert.Zero(t, f.fetcher.clones)
}

func TestResolveImports_DynamicRef(t *testing.T) {
	f := newImportFixture(t)
	f.run.options.Environment = environment.Environment{"BRANCH": "feature"}

	_, err := f.plan(t, "/plans/dynamic").ResolveImports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"feature"}, f.fetcher.checkouts)
}

func TestResolveImports_DryRunUsesFetchCache(t *testing.T) {
	f := newImportFixture(t)
	f.run.options.DryRun = true
	f.run.options.Environment = environment.Environment{"BRANCH": "feature"}

	plans, err := f.plan(t, "/plans/dynamic").ResolveImports(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)

	assert.Zero(t, f.fetcher.clones)
	assert.Equal(t, 1, f.fetcher.shallow)
	require.Len(t, f.fetcher.cached, 1)
	assert.Equal(t, fmf.ID{URL: remoteURL, Ref: "feature"}, f.fetcher.cached[0])
}

func TestResolveImports_WithoutFetcher(t *testing.T) {
	f := newImportFixture(t)
	f.run.fetcher = nil
	_, err := f.plan(t, "/plans/single").ResolveImports(context.Background())
	var generalErr *GeneralError
	assert.ErrorAs(t, err, &generalErr)
}

func TestWake_RemoteReference(t *testing.T) {
	f := newImportFixture(t)
	var generalErr *GeneralError
	assert.ErrorAs(t, f.plan(t, "/plans/single").Wake(), &generalErr)
}

func TestGo_ImportedPlan(t *testing.T) {
	f := newImportFixture(t)
	plans, err := f.plan(t, "/plans/single").ResolveImports(context.Background())
	require.NoError(t, err)

	require.NoError(t, plans[0].Go(context.Background()))
	assert.Equal(t, []string{"discover", "provision", "prepare", "execute", "report", "finish", "cleanup"}, f.rec.Calls())
	assert.Equal(t, "/x", plans[0].Discover().Tests()[0].Name)
}
