package fmf

import "strings"

// ID identifies a node, possibly in a remote repository.
type ID struct {
	URL  string `yaml:"url,omitempty"`
	Ref  string `yaml:"ref,omitempty"`
	Path string `yaml:"path,omitempty"`
	Name string `yaml:"name,omitempty"`
}

// String renders the id in a compact url@ref:path#name form.
func (id ID) String() string {
	var b strings.Builder
	b.WriteString(id.URL)
	if id.Ref != "" {
		b.WriteString("@" + id.Ref)
	}
	if id.Path != "" {
		b.WriteString(":" + id.Path)
	}
	if id.Name != "" {
		b.WriteString("#" + id.Name)
	}
	return b.String()
}

// IDOf returns the fmf id of a node based on the origin of its tree.
func IDOf(n *Node) ID {
	id := ID{Name: n.Name}
	if t := n.Tree(); t != nil {
		id.URL = t.URL
		id.Ref = t.Ref
		id.Path = t.Path
	}
	return id
}
