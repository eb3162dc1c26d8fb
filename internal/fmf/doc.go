// Package fmf loads hierarchical test metadata trees.
//
// A tree is a directory of YAML files. Every directory is a node, every
// "name.fmf" file is a child node of its directory, and "main.fmf" holds the
// data of the directory node itself. Inside a file, keys starting with "/"
// declare further child nodes:
//
//	plans/main.fmf:
//	    discover:
//	        how: fmf
//	    /smoke:
//	        summary: Quick sanity plan
//	        execute:
//	            how: tmt
//
// produces the nodes "/plans" and "/plans/smoke"; "/plans/smoke" inherits the
// discover key from its parent. A key suffixed with "+" extends the inherited
// value instead of replacing it.
//
// Conditional data is expressed with "adjust" rules evaluated against a
// Context (named dimensions such as distro or arch):
//
//	adjust:
//	  - when: distro == centos-stream-9 and arch != aarch64
//	    enabled: false
//	    because: not supported there
//
// Only the subset of the format needed by plan execution is implemented.
package fmf
