// Package template renders Go templates (with the sprig function library)
// embedded in plan metadata, such as dynamic git references.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders templates against a variable context. Parsed templates are
// cached by their source text.
type Engine struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

// New creates a new template engine
func New() *Engine {
	return &Engine{cache: make(map[string]*template.Template)}
}

// IsTemplate reports whether value contains template actions.
func IsTemplate(value string) bool {
	return strings.Contains(value, "{{")
}

// Render executes text against context. Referencing a missing key is an error.
func (e *Engine) Render(text string, context map[string]interface{}) (string, error) {
	if !IsTemplate(text) {
		return text, nil
	}

	tmpl, err := e.parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("failed to render template '%s': %w", text, err)
	}
	return buf.String(), nil
}

// Replace renders every string found in value (recursively through maps and
// slices). Non-string scalars are returned as-is.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.Render(v, context)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, item := range v {
			replaced, err := e.Replace(item, context)
			if err != nil {
				return nil, fmt.Errorf("error in key '%s': %w", key, err)
			}
			result[key] = replaced
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			replaced, err := e.Replace(item, context)
			if err != nil {
				return nil, fmt.Errorf("error at index %d: %w", i, err)
			}
			result[i] = replaced
		}
		return result, nil
	default:
		return value, nil
	}
}

func (e *Engine) parse(text string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[text]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("value").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template '%s': %w", text, err)
	}
	e.cache[text] = tmpl
	return tmpl, nil
}
