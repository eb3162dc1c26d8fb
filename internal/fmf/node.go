package fmf

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Node is a named unit of metadata. Data is the fully inherited view.
type Node struct {
	Name string

	raw      map[string]interface{}
	data     map[string]interface{}
	parent   *Node
	children []*Node
	sources  []string
	tree     *Tree
}

func newNode(name string, parent *Node, tree *Tree) *Node {
	return &Node{
		Name:   name,
		raw:    map[string]interface{}{},
		data:   map[string]interface{}{},
		parent: parent,
		tree:   tree,
	}
}

// NewNode creates a detached node with the given data, mostly useful for
// tests and for nodes synthesised at runtime.
func NewNode(name string, data map[string]interface{}) *Node {
	n := newNode(name, nil, nil)
	if data != nil {
		n.raw = DeepCopy(data).(map[string]interface{})
		n.data = DeepCopy(data).(map[string]interface{})
	}
	return n
}

// Get returns a value from the inherited node data.
func (n *Node) Get(key string) (interface{}, bool) {
	v, ok := n.data[key]
	return v, ok
}

// GetString returns a string value, or def when missing or not a string.
func (n *Node) GetString(key, def string) string {
	if v, ok := n.data[key].(string); ok {
		return v
	}
	return def
}

// GetBool returns a boolean value, or def when missing or not a boolean.
func (n *Node) GetBool(key string, def bool) bool {
	if v, ok := n.data[key].(bool); ok {
		return v
	}
	return def
}

// Has reports whether the inherited data defines key.
func (n *Node) Has(key string) bool {
	_, ok := n.data[key]
	return ok
}

// Set replaces a key in the node data.
func (n *Node) Set(key string, value interface{}) {
	n.data[key] = value
}

// Data returns a deep copy of the inherited node data.
func (n *Node) Data() map[string]interface{} {
	return DeepCopy(n.data).(map[string]interface{})
}

// Update merges data into the node using the "+" / "-" key conventions.
func (n *Node) Update(data map[string]interface{}) error {
	return MergeData(n.data, data)
}

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns child nodes sorted by name.
func (n *Node) Children() []*Node { return n.children }

// Leaf reports whether the node has no children.
func (n *Node) Leaf() bool { return len(n.children) == 0 }

// Tree returns the tree the node was loaded from (nil for detached nodes).
func (n *Node) Tree() *Tree { return n.tree }

// Sources lists the files which contributed to the node.
func (n *Node) Sources() []string { return n.sources }

// Copy returns a deep copy of the node. The copy keeps its tree reference but
// is not linked into the tree, so mutating it never affects other nodes.
func (n *Node) Copy() *Node {
	c := &Node{
		Name:    n.Name,
		raw:     DeepCopy(n.raw).(map[string]interface{}),
		data:    DeepCopy(n.data).(map[string]interface{}),
		parent:  n.parent,
		tree:    n.tree,
		sources: append([]string(nil), n.sources...),
	}
	return c
}

// Child returns the direct child with the given short name.
func (n *Node) Child(short string) (*Node, bool) {
	want := path.Join(n.Name, short)
	for _, c := range n.children {
		if c.Name == want {
			return c, true
		}
	}
	return nil, false
}

func (n *Node) child(short string) *Node {
	if c, ok := n.Child(short); ok {
		return c
	}
	c := newNode(path.Join(n.Name, short), n, n.tree)
	n.children = append(n.children, c)
	sort.Slice(n.children, func(i, j int) bool { return n.children[i].Name < n.children[j].Name })
	return c
}

// addRaw merges file data into the node, splitting out "/child" keys.
func (n *Node) addRaw(data map[string]interface{}, source string) error {
	n.sources = append(n.sources, source)
	for key, value := range data {
		if !strings.HasPrefix(key, "/") {
			// Kept verbatim: "+"/"-" suffixes are resolved during inheritance.
			n.raw[key] = value
			continue
		}
		childData, ok := value.(map[string]interface{})
		if value != nil && !ok {
			return fmt.Errorf("%s: child node '%s' must be a mapping", source, key)
		}
		target := n
		for _, part := range strings.Split(strings.Trim(key, "/"), "/") {
			if part == "" {
				continue
			}
			target = target.child(part)
		}
		if err := target.addRaw(childData, source); err != nil {
			return err
		}
	}
	return nil
}

// inherit computes the inherited data for the node and all descendants.
func (n *Node) inherit() error {
	data := map[string]interface{}{}
	if n.parent != nil {
		data = DeepCopy(n.parent.data).(map[string]interface{})
	}
	if err := MergeData(data, n.raw); err != nil {
		return fmt.Errorf("node '%s': %w", n.Name, err)
	}
	n.data = data
	for _, c := range n.children {
		if err := c.inherit(); err != nil {
			return err
		}
	}
	return nil
}
