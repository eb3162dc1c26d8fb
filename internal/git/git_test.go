package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// initRepo creates a repository with one commit on branch main and a tag v1.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.org",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.org")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "--quiet", "--initial-branch=main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v1"), 0644))
	run("add", ".")
	run("commit", "--quiet", "-m", "first")
	run("tag", "v1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v2"), 0644))
	run("commit", "--quiet", "-am", "second")
	return dir
}

func TestPoolLimitsConcurrency(t *testing.T) {
	const limit = 2
	pool := NewPool(limit)

	var running, maxSeen atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = pool.Run(context.Background(), func() error {
				cur := running.Add(1)
				for {
					old := maxSeen.Load()
					if cur <= old || maxSeen.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, maxSeen.Load(), int32(limit))
}

func TestNilPoolRunsDirectly(t *testing.T) {
	var p *Pool
	called := false
	require.NoError(t, p.Run(context.Background(), func() error { called = true; return nil }))
	assert.True(t, called)
}

func TestClient_CloneCheckout(t *testing.T) {
	requireGit(t)
	origin := initRepo(t)
	client := NewClient(NewPool(2), 0, time.Millisecond)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, client.Clone(ctx, origin, dest, CloneOptions{}))

	content, err := os.ReadFile(filepath.Join(dest, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))

	require.NoError(t, client.Checkout(ctx, dest, "v1"))
	content, err = os.ReadFile(filepath.Join(dest, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	head, err := client.Head(ctx, dest)
	require.NoError(t, err)
	assert.Len(t, head, 40)

	assert.Error(t, client.Checkout(ctx, dest, "no-such-ref"))
}

func TestClient_CloneRetriesAndFails(t *testing.T) {
	requireGit(t)
	client := NewClient(NewPool(1), 2, time.Millisecond)

	dest := filepath.Join(t.TempDir(), "clone")
	err := client.Clone(context.Background(), filepath.Join(t.TempDir(), "missing"), dest, CloneOptions{Shallow: true})
	require.Error(t, err)

	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
