package fmf

import (
	"fmt"
	"strings"
)

// MergeData overlays src onto dst in place. A key ending with "+" extends the
// existing value: lists are appended, maps are merged recursively and strings
// are concatenated. A key ending with "-" removes matching list items or map
// keys. All other keys replace.
func MergeData(dst, src map[string]interface{}) error {
	for key, value := range src {
		switch {
		case strings.HasSuffix(key, "+"):
			name := strings.TrimSuffix(key, "+")
			merged, err := extend(dst[name], value)
			if err != nil {
				return fmt.Errorf("cannot extend key '%s': %w", name, err)
			}
			dst[name] = merged
		case strings.HasSuffix(key, "-") && len(key) > 1:
			name := strings.TrimSuffix(key, "-")
			dst[name] = reduce(dst[name], value)
		default:
			dst[key] = DeepCopy(value)
		}
	}
	return nil
}

func extend(current, addition interface{}) (interface{}, error) {
	if current == nil {
		return DeepCopy(addition), nil
	}
	switch cur := current.(type) {
	case []interface{}:
		out := DeepCopy(cur).([]interface{})
		if list, ok := addition.([]interface{}); ok {
			return append(out, DeepCopy(list).([]interface{})...), nil
		}
		return append(out, DeepCopy(addition)), nil
	case map[string]interface{}:
		add, ok := addition.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected mapping, got %T", addition)
		}
		out := DeepCopy(cur).(map[string]interface{})
		if err := MergeData(out, add); err != nil {
			return nil, err
		}
		return out, nil
	case string:
		add, ok := addition.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", addition)
		}
		return cur + add, nil
	default:
		return nil, fmt.Errorf("type %T cannot be extended", current)
	}
}

func reduce(current, removal interface{}) interface{} {
	switch cur := current.(type) {
	case []interface{}:
		drop := map[string]bool{}
		if list, ok := removal.([]interface{}); ok {
			for _, item := range list {
				drop[fmt.Sprint(item)] = true
			}
		} else {
			drop[fmt.Sprint(removal)] = true
		}
		var out []interface{}
		for _, item := range cur {
			if !drop[fmt.Sprint(item)] {
				out = append(out, item)
			}
		}
		return out
	case map[string]interface{}:
		out := DeepCopy(cur).(map[string]interface{})
		if list, ok := removal.([]interface{}); ok {
			for _, item := range list {
				delete(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return current
	}
}

// DeepCopy copies the YAML-shaped values (maps, lists, scalars) used in node data.
func DeepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = DeepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// normalize converts yaml.v3 decoded values into map[string]interface{} form.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, item := range v {
			v[key] = normalize(item)
		}
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalize(item)
		}
		return out
	case []interface{}:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return v
	}
}
