package fetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tmt/internal/fmf"
	"tmt/internal/git"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.org",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.org")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

// metadataRepo creates a repository holding two plans below /plans and a
// tag "v1" that only holds /plans/a.
func metadataRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init", "--quiet", "--initial-branch=main")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fmf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fmf", "version"), []byte("1\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plans"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans", "a.fmf"), []byte("execute:\n  how: tmt\n"), 0644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "--quiet", "-m", "a")
	gitCmd(t, dir, "tag", "v1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans", "b.fmf"), []byte("execute:\n  how: tmt\n"), 0644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "--quiet", "-m", "b")
	return dir
}

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(git.NewClient(git.NewPool(2), 0, time.Millisecond), t.TempDir(), 8)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, t.TempDir(), 1)
	assert.Error(t, err)
}

func TestFetchCached(t *testing.T) {
	requireGit(t)
	repo := metadataRepo(t)
	f := newFetcher(t)
	ctx := context.Background()

	tree, err := f.FetchCached(ctx, fmf.ID{URL: repo})
	require.NoError(t, err)
	_, ok := tree.Node("/plans/b")
	assert.True(t, ok)
	assert.Equal(t, repo, tree.URL)

	again, err := f.FetchCached(ctx, fmf.ID{URL: repo})
	require.NoError(t, err)
	assert.Same(t, tree, again)

	tagged, err := f.FetchCached(ctx, fmf.ID{URL: repo, Ref: "v1"})
	require.NoError(t, err)
	_, ok = tagged.Node("/plans/b")
	assert.False(t, ok)
	_, ok = tagged.Node("/plans/a")
	assert.True(t, ok)
}

func TestFetchCachedConcurrent(t *testing.T) {
	requireGit(t)
	repo := metadataRepo(t)
	f := newFetcher(t)

	var wg sync.WaitGroup
	trees := make([]*fmf.Tree, 4)
	errs := make([]error, 4)
	for i := range trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trees[i], errs[i] = f.FetchCached(context.Background(), fmf.ID{URL: repo, Path: "plans"})
		}(i)
	}
	wg.Wait()

	for i := range trees {
		require.NoError(t, errs[i])
		assert.Same(t, trees[0], trees[i])
	}
}

func TestCloneReusesDestination(t *testing.T) {
	requireGit(t)
	repo := metadataRepo(t)
	f := newFetcher(t)
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "import", "plans-a")

	require.NoError(t, f.Clone(ctx, repo, dest))
	marker := filepath.Join(dest, "marker")
	require.NoError(t, os.WriteFile(marker, nil, 0644))

	require.NoError(t, f.Clone(ctx, repo, dest))
	_, err := os.Stat(marker)
	assert.NoError(t, err, "second clone must reuse the existing checkout")

	require.NoError(t, f.Checkout(ctx, dest, "v1"))
	_, err = os.Stat(filepath.Join(dest, "plans", "b.fmf"))
	assert.True(t, os.IsNotExist(err))
}

func TestCacheKeyIgnoresName(t *testing.T) {
	assert.Equal(t,
		cacheKey(fmf.ID{URL: "u", Ref: "r", Path: "p", Name: "/a"}),
		cacheKey(fmf.ID{URL: "u", Ref: "r", Path: "p", Name: "/b"}))
}
