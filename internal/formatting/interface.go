// Package formatting renders run results and plan listings for the console.
//
// Three output formats are supported: a rich table for humans and YAML or
// JSON for tooling. Report plugins and the CLI pick a Formatter through
// NewFormatter.
package formatting

import (
	"io"

	"tmt/internal/step"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatJSON  OutputFormat = "json"  // JSON output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// PlanRow is one line of a plan listing.
type PlanRow struct {
	Name    string `json:"name" yaml:"name"`
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Import  string `json:"import,omitempty" yaml:"import,omitempty"`
}

// Formatter writes results and plan listings.
type Formatter interface {
	Results(w io.Writer, plan string, results []step.Result) error
	Plans(w io.Writer, plans []PlanRow) error
}

// NewFormatter creates the formatter for options.Format, defaulting to a
// table.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{options: options}
	}
}
