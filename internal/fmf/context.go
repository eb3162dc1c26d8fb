package fmf

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Context is a set of named dimensions, each holding one or more values,
// used to evaluate adjust rules.
type Context map[string][]string

// Copy returns an independent copy of the context.
func (c Context) Copy() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Merge returns a new context with the given contexts layered over c; later
// layers replace whole dimensions.
func (c Context) Merge(layers ...Context) Context {
	out := c.Copy()
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Keys returns the dimension names, sorted.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the first value of a dimension.
func (c Context) First(dimension string) (string, bool) {
	values := c[dimension]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// ParseContext parses "dimension=value[,value...]" items.
func ParseContext(items []string) (Context, error) {
	out := Context{}
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context '%s', expected dimension=value", item)
		}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out[key] = append(out[key], v)
			}
		}
	}
	return out, nil
}

// ContextFromData converts a node "context" value into a Context.
func ContextFromData(value interface{}) (Context, error) {
	if value == nil {
		return Context{}, nil
	}
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("context must be a mapping, got %T", value)
	}
	out := Context{}
	for k, v := range raw {
		switch tv := v.(type) {
		case []interface{}:
			for _, item := range tv {
				out[k] = append(out[k], fmt.Sprint(item))
			}
		default:
			out[k] = []string{fmt.Sprint(tv)}
		}
	}
	return out, nil
}

// ToData converts the context back into node data form.
func (c Context) ToData() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = item
		}
		out[k] = items
	}
	return out
}

// decision is the outcome of evaluating a condition: a dimension missing from
// the context makes the rule undecidable rather than false.
type decision int

const (
	decisionFalse decision = iota
	decisionTrue
	decisionUnknown
)

var comparisonPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*(==|!=|~=|~!=|is not defined|is defined)\s*(.*?)\s*$`)

// Matches evaluates a "when" expression. The second result is false when the
// expression could not be decided because a dimension is not defined.
func (c Context) Matches(expression string) (bool, bool, error) {
	d, err := c.evaluate(expression)
	if err != nil {
		return false, false, err
	}
	return d == decisionTrue, d != decisionUnknown, nil
}

func (c Context) evaluate(expression string) (decision, error) {
	expression = strings.TrimSpace(expression)
	switch expression {
	case "true":
		return decisionTrue, nil
	case "false":
		return decisionFalse, nil
	case "":
		return decisionFalse, fmt.Errorf("empty condition")
	}

	if parts := strings.Split(expression, " or "); len(parts) > 1 {
		result := decisionFalse
		for _, part := range parts {
			d, err := c.evaluate(part)
			if err != nil {
				return decisionFalse, err
			}
			if d == decisionTrue {
				return decisionTrue, nil
			}
			if d == decisionUnknown {
				result = decisionUnknown
			}
		}
		return result, nil
	}

	if parts := strings.Split(expression, " and "); len(parts) > 1 {
		result := decisionTrue
		for _, part := range parts {
			d, err := c.evaluate(part)
			if err != nil {
				return decisionFalse, err
			}
			if d == decisionFalse {
				return decisionFalse, nil
			}
			if d == decisionUnknown {
				result = decisionUnknown
			}
		}
		return result, nil
	}

	m := comparisonPattern.FindStringSubmatch(expression)
	if m == nil {
		return decisionFalse, fmt.Errorf("invalid condition '%s'", expression)
	}
	dimension, operator, operand := m[1], m[2], m[3]
	values, defined := c[dimension]

	switch operator {
	case "is defined":
		return boolDecision(defined), nil
	case "is not defined":
		return boolDecision(!defined), nil
	}
	if !defined {
		return decisionUnknown, nil
	}

	var wanted []string
	for _, w := range strings.Split(operand, ",") {
		if w = strings.TrimSpace(w); w != "" {
			wanted = append(wanted, w)
		}
	}
	if len(wanted) == 0 {
		return decisionFalse, fmt.Errorf("missing value in condition '%s'", expression)
	}

	switch operator {
	case "==":
		return boolDecision(anyValue(values, wanted, versionEqual)), nil
	case "!=":
		return boolDecision(!anyValue(values, wanted, versionEqual)), nil
	case "~=", "~!=":
		matched := false
		for _, w := range wanted {
			re, err := regexp.Compile(w)
			if err != nil {
				return decisionFalse, fmt.Errorf("invalid pattern in condition '%s': %w", expression, err)
			}
			for _, v := range values {
				if re.MatchString(v) {
					matched = true
				}
			}
		}
		if operator == "~!=" {
			matched = !matched
		}
		return boolDecision(matched), nil
	}
	return decisionFalse, fmt.Errorf("unsupported operator in '%s'", expression)
}

func boolDecision(b bool) decision {
	if b {
		return decisionTrue
	}
	return decisionFalse
}

func anyValue(values, wanted []string, eq func(have, want string) bool) bool {
	for _, v := range values {
		for _, w := range wanted {
			if eq(v, w) {
				return true
			}
		}
	}
	return false
}

// versionEqual compares "name-version" values; a wanted value with fewer
// version parts matches any more specific value, so "fedora" matches
// "fedora-40" and "centos-stream" matches "centos-stream-9".
func versionEqual(have, want string) bool {
	if have == want {
		return true
	}
	return strings.HasPrefix(have, want+"-") || strings.HasPrefix(have, want+".")
}
