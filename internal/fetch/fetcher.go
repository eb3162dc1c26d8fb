package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tmt/internal/fmf"
	"tmt/internal/git"
	"tmt/internal/workdir"
	"tmt/pkg/logging"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// Fetcher clones repositories and loads metadata trees from them.
type Fetcher struct {
	git      *git.Client
	cacheDir string

	trees *ristretto.Cache[string, *fmf.Tree]
	group singleflight.Group
}

// New creates a Fetcher. cacheSize bounds the number of loaded trees kept in
// memory.
func New(client *git.Client, cacheDir string, cacheSize int64) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("git client is required")
	}
	if cacheSize < 1 {
		cacheSize = 1
	}
	trees, err := ristretto.NewCache(&ristretto.Config[string, *fmf.Tree]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
		// Cost counts trees, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}
	return &Fetcher{git: client, cacheDir: cacheDir, trees: trees}, nil
}

// Close releases the in-memory tree cache.
func (f *Fetcher) Close() {
	f.trees.Close()
}

// Clone clones url into dest. An existing clone at dest is reused as is.
func (f *Fetcher) Clone(ctx context.Context, url, dest string) error {
	if isClone(dest) {
		logging.Debug("Fetch", "Reusing clone of %s in %s", url, dest)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	logging.Info("Fetch", "Cloning %s into %s", url, dest)
	return f.git.Clone(ctx, url, dest, git.CloneOptions{})
}

// ShallowClone clones only the tip of the default branch of url into dest.
func (f *Fetcher) ShallowClone(ctx context.Context, url, dest string) error {
	return f.git.Clone(ctx, url, dest, git.CloneOptions{Shallow: true})
}

// Checkout switches the clone in dir to ref.
func (f *Fetcher) Checkout(ctx context.Context, dir, ref string) error {
	return f.git.Checkout(ctx, dir, ref)
}

// FetchCached returns the tree identified by id.URL, id.Ref and id.Path,
// cloning or refreshing the cached repository when the tree is not held in
// memory.
func (f *Fetcher) FetchCached(ctx context.Context, id fmf.ID) (*fmf.Tree, error) {
	if id.URL == "" {
		return nil, errors.New("fetch requires a url")
	}
	key := cacheKey(id)
	if tree, ok := f.trees.Get(key); ok {
		logging.Debug("Fetch", "Tree cache hit for %s", key)
		return tree, nil
	}

	value, err, _ := f.group.Do(key, func() (interface{}, error) {
		if tree, ok := f.trees.Get(key); ok {
			return tree, nil
		}
		tree, err := f.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		f.trees.Set(key, tree, 1)
		f.trees.Wait()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*fmf.Tree), nil
}

func (f *Fetcher) fetch(ctx context.Context, id fmf.ID) (*fmf.Tree, error) {
	ref := id.Ref
	if ref == "" {
		ref = "HEAD"
	}
	dest := filepath.Join(f.cacheDir, workdir.SanitizeName(id.URL), workdir.SanitizeName(ref))

	if isClone(dest) {
		if err := f.git.Fetch(ctx, dest); err != nil {
			return nil, err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		logging.Info("Fetch", "Caching %s", id.URL)
		if err := f.git.Clone(ctx, id.URL, dest, git.CloneOptions{}); err != nil {
			return nil, err
		}
	}
	if err := f.checkout(ctx, dest, id.Ref); err != nil {
		return nil, err
	}

	tree, err := fmf.Load(filepath.Join(dest, id.Path))
	if err != nil {
		return nil, err
	}
	tree.URL = id.URL
	tree.Ref = id.Ref
	tree.Path = id.Path
	return tree, nil
}

// checkout prefers the remote tracking branch so that a refreshed cache
// follows the remote, falling back to tags and commits.
func (f *Fetcher) checkout(ctx context.Context, dir, ref string) error {
	if ref == "" {
		return f.git.Checkout(ctx, dir, "origin/HEAD")
	}
	if err := f.git.Checkout(ctx, dir, "origin/"+ref); err == nil {
		return nil
	}
	return f.git.Checkout(ctx, dir, ref)
}

func cacheKey(id fmf.ID) string {
	return fmf.ID{URL: id.URL, Ref: id.Ref, Path: id.Path}.String()
}

func isClone(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
