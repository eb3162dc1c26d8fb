// Package report holds the report plugins.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tmt/internal/formatting"
	"tmt/internal/step"
	"tmt/pkg/logging"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

func init() {
	step.MustRegister(step.Report, "display", newDisplay)
	step.MustRegister(step.Report, "yaml", newYAML)
}

// output is where display reports are written.
var output io.Writer = os.Stdout

// Display prints the results to the console.
type Display struct {
	step.BasePhase
}

func newDisplay(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	d := &Display{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"format": string(formatting.FormatTable),
	})}
	switch formatting.OutputFormat(d.GetString("format")) {
	case formatting.FormatTable, formatting.FormatYAML, formatting.FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported format '%s'", d.GetString("format"))
	}
	return d, nil
}

func (d *Display) Go(ctx context.Context) error {
	plan := d.Step().Plan()
	formatter := formatting.NewFormatter(formatting.Options{
		Format: formatting.OutputFormat(d.GetString("format")),
		Color:  isTerminal(output),
	})
	return formatter.Results(output, plan.Name(), plan.Execute().Results())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// YAML writes the results into a file, by default results.yaml in the plan
// workdir where cleanup leaves it in place. Relative paths are resolved
// against the plan workdir.
type YAML struct {
	step.BasePhase
}

func newYAML(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	return &YAML{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"file": "results.yaml",
	})}, nil
}

// File is the path the report is written to.
func (y *YAML) File() string {
	file := y.GetString("file")
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(y.Step().Plan().Workdir(), file)
}

func (y *YAML) Go(ctx context.Context) error {
	plan := y.Step().Plan()
	content, err := yaml.Marshal(plan.Execute().Results())
	if err != nil {
		return err
	}
	file := y.File()
	if plan.DryRun() {
		y.Logger().Info("would write %s", file)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(file, content, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	y.Logger().Info("results saved to %s", file)
	return nil
}
