package template

import (
	"tmt/internal/environment"
	"tmt/internal/fmf"
)

// MergeValues merges template variables. Later maps win; nested maps are
// merged key by key so a later layer may extend "environment" or "context"
// without replacing it.
func MergeValues(layers ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, layer := range layers {
		for key, value := range layer {
			nested, ok := value.(map[string]interface{})
			existing, isMap := result[key].(map[string]interface{})
			if ok && isMap {
				result[key] = MergeValues(existing, nested)
				continue
			}
			result[key] = value
		}
	}
	return result
}

// PlanValues are the variables plan metadata templates see: every
// environment variable at the top level, "environment" with the same
// variables and "context" with the first value of each context dimension.
func PlanValues(ctx fmf.Context, env environment.Environment) map[string]interface{} {
	variables := make(map[string]interface{}, len(env))
	for key, value := range env {
		variables[key] = value
	}
	dimensions := make(map[string]interface{}, len(ctx))
	for _, dim := range ctx.Keys() {
		dimensions[dim], _ = ctx.First(dim)
	}
	return MergeValues(variables, map[string]interface{}{
		"environment": variables,
		"context":     dimensions,
	})
}
