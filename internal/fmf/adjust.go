package fmf

import "fmt"

// Rule is a single adjust rule: a condition plus the data it applies.
type Rule map[string]interface{}

// RulesFromData converts an "adjust" value (a mapping or a list of mappings)
// into rules.
func RulesFromData(value interface{}) ([]Rule, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return []Rule{Rule(v)}, nil
	case []interface{}:
		rules := make([]Rule, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("adjust rule %d must be a mapping, got %T", i, item)
			}
			rules = append(rules, Rule(m))
		}
		return rules, nil
	default:
		return nil, fmt.Errorf("adjust must be a mapping or a list, got %T", value)
	}
}

// Adjust applies the node's own adjust rules followed by extra rules, in
// order, against ctx. A rule without "when" always applies. Rules whose
// condition cannot be decided are skipped. A matching rule with
// "continue: false" stops processing of the remaining rules.
func Adjust(n *Node, ctx Context, extra []Rule) error {
	own, err := RulesFromData(n.data["adjust"])
	if err != nil {
		return fmt.Errorf("node '%s': %w", n.Name, err)
	}
	delete(n.data, "adjust")

	for _, rule := range append(own, extra...) {
		apply := true
		if when, ok := rule["when"]; ok {
			expression, ok := when.(string)
			if !ok {
				return fmt.Errorf("node '%s': condition must be a string, got %T", n.Name, when)
			}
			matched, decided, err := ctx.Matches(expression)
			if err != nil {
				return fmt.Errorf("node '%s': %w", n.Name, err)
			}
			apply = matched && decided
		}
		if !apply {
			continue
		}

		data := map[string]interface{}{}
		for key, value := range rule {
			switch key {
			case "when", "because", "continue":
			default:
				data[key] = value
			}
		}
		if err := MergeData(n.data, data); err != nil {
			return fmt.Errorf("node '%s': %w", n.Name, err)
		}

		if cont, ok := rule["continue"].(bool); ok && !cont {
			break
		}
	}
	return nil
}
