package fmf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	fileSuffix   = ".fmf"
	mainFileName = "main" + fileSuffix
)

// Tree is a loaded metadata tree.
type Tree struct {
	// Root is the directory the tree was loaded from.
	Root string
	// URL, Ref and Path identify the tree inside a git repository, when known.
	URL  string
	Ref  string
	Path string

	root  *Node
	nodes map[string]*Node
}

// Load reads all *.fmf files below dir into a tree.
func Load(dir string) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve tree root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("tree root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tree root %s is not a directory", abs)
	}

	t := &Tree{Root: abs}
	t.root = newNode("/", nil, t)

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), fileSuffix) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		return t.loadFile(abs, p)
	})
	if err != nil {
		return nil, err
	}

	if err := t.root.inherit(); err != nil {
		return nil, err
	}
	t.index()
	return t, nil
}

func (t *Tree) loadFile(root, filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("invalid metadata in %s: %w", filePath, err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data = normalize(data).(map[string]interface{})

	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(rel)

	target := t.root
	if dir != "." {
		for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
			target = target.child(part)
		}
	}
	if base := filepath.Base(rel); base != mainFileName {
		target = target.child(strings.TrimSuffix(base, fileSuffix))
	}
	return target.addRaw(data, filePath)
}

func (t *Tree) index() {
	t.nodes = map[string]*Node{}
	t.Walk(func(n *Node) bool {
		t.nodes[n.Name] = n
		return true
	})
}

// RootNode returns the "/" node.
func (t *Tree) RootNode() *Node { return t.root }

// Node returns the node with the given name.
func (t *Tree) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Walk visits nodes depth-first in name order; returning false from fn stops
// descent into that node's children.
func (t *Tree) Walk(fn func(*Node) bool) {
	var visit func(*Node)
	visit = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
}

// Prune returns leaf nodes which define all keys and whose name matches any
// of names (all leaves when names is empty), in traversal order.
func (t *Tree) Prune(keys []string, names []*regexp.Regexp) []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if !n.Leaf() {
			return true
		}
		for _, key := range keys {
			if !n.Has(key) {
				return true
			}
		}
		if len(names) > 0 {
			matched := false
			for _, re := range names {
				if re.MatchString(n.Name) {
					matched = true
					break
				}
			}
			if !matched {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return out
}

// ErrNoTree is returned by FindRoot when no tree root is found.
var ErrNoTree = errors.New("no metadata tree found")

// FindRoot walks up from dir looking for a ".fmf" directory and returns the
// directory containing it.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(abs, ".fmf")); err == nil && info.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%s: %w", dir, ErrNoTree)
		}
		abs = parent
	}
}
