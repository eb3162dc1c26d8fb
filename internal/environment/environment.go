// Package environment holds process environment variables passed to tests
// and the layered composition rules used to build them.
package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Environment maps variable names to values.
type Environment map[string]string

// Copy returns an independent copy.
func (e Environment) Copy() Environment {
	out := make(Environment, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge returns a new environment with layers applied over e, later layers
// winning.
func (e Environment) Merge(layers ...Environment) Environment {
	out := e.Copy()
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Keys returns the variable names, sorted.
func (e Environment) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pairs returns sorted KEY=VALUE strings suitable for exec.Cmd.Env.
func (e Environment) Pairs() []string {
	pairs := make([]string, 0, len(e))
	for _, k := range e.Keys() {
		pairs = append(pairs, k+"="+e[k])
	}
	return pairs
}

// Parse converts KEY=VALUE items, as given on the command line.
func Parse(items []string) (Environment, error) {
	out := Environment{}
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment variable '%s', expected KEY=VALUE", item)
		}
		out[key] = value
	}
	return out, nil
}

// FromData converts an "environment" metadata value (a mapping) into an
// Environment. Scalar values are stringified.
func FromData(value interface{}) (Environment, error) {
	if value == nil {
		return Environment{}, nil
	}
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("environment must be a mapping, got %T", value)
	}
	out := make(Environment, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("environment variable '%s' must be a scalar", k)
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out, nil
}

// FromFile reads a dotenv or YAML (*.yaml, *.yml) file. A missing file
// yields an empty environment when optional is true.
func FromFile(path string, optional bool) (Environment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Environment{}, nil
		}
		return nil, fmt.Errorf("failed to read environment file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML environment file %s: %w", path, err)
		}
		env, err := FromData(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return env, nil
	default:
		parsed, err := gotenv.StrictParse(strings.NewReader(string(content)))
		if err != nil {
			return nil, fmt.Errorf("invalid environment file %s: %w", path, err)
		}
		return Environment(parsed), nil
	}
}

// FromFiles reads environment files relative to root in order, later files
// winning. Absolute paths must still resolve inside root.
func FromFiles(root string, paths []string) (Environment, error) {
	out := Environment{}
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, p)
		}
		full = filepath.Clean(full)
		if rel, err := filepath.Rel(root, full); err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("environment file '%s' is outside of the tree %s", p, root)
		}
		env, err := FromFile(full, false)
		if err != nil {
			return nil, err
		}
		out = out.Merge(env)
	}
	return out, nil
}
