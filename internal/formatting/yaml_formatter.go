package formatting

import (
	"io"

	"tmt/internal/step"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct{}

type planResults struct {
	Plan    string        `json:"plan" yaml:"plan"`
	Results []step.Result `json:"results" yaml:"results"`
}

func (f *YAMLFormatter) Results(w io.Writer, plan string, results []step.Result) error {
	return f.encode(w, planResults{Plan: plan, Results: results})
}

func (f *YAMLFormatter) Plans(w io.Writer, plans []PlanRow) error {
	return f.encode(w, plans)
}

func (f *YAMLFormatter) encode(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
