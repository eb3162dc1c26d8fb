package environment

// Layer is one named source of variables.
type Layer struct {
	Name   string
	Values Environment
	// Inheritable layers are passed on to plans imported by the owning plan.
	Inheritable bool
}

// Compose merges layers given in increasing precedence order.
func Compose(layers ...Layer) Environment {
	out := Environment{}
	for _, layer := range layers {
		out = out.Merge(layer.Values)
	}
	return out
}

// ComposeInheritable merges only the inheritable layers.
func ComposeInheritable(layers ...Layer) Environment {
	out := Environment{}
	for _, layer := range layers {
		if layer.Inheritable {
			out = out.Merge(layer.Values)
		}
	}
	return out
}

// Source reports which layer provided the effective value of key, or "" when
// no layer defines it.
func Source(key string, layers ...Layer) string {
	source := ""
	for _, layer := range layers {
		if _, ok := layer.Values[key]; ok {
			source = layer.Name
		}
	}
	return source
}
