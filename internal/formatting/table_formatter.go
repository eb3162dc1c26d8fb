package formatting

import (
	"fmt"
	"io"

	"tmt/internal/step"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// Results renders one row per result followed by a summary line.
func (f *TableFormatter) Results(w io.Writer, plan string, results []step.Result) error {
	if len(results) == 0 {
		fmt.Fprintf(w, "%s %s\n", f.colorize(text.FgYellow, "📋"), f.colorize(text.FgYellow, "No results for "+plan))
		return nil
	}

	t := f.createTable(w)
	t.SetTitle(plan)
	t.AppendHeader(table.Row{
		f.colorize(text.FgHiCyan, "RESULT"),
		f.colorize(text.FgHiCyan, "TEST"),
		f.colorize(text.FgHiCyan, "GUEST"),
		f.colorize(text.FgHiCyan, "DURATION"),
		f.colorize(text.FgHiCyan, "NOTE"),
	})
	for _, r := range results {
		t.AppendRow(table.Row{f.outcome(r.Outcome), r.Name, r.Guest, r.Duration, truncate(r.Note, maxCellLen)})
	}
	t.Render()

	fmt.Fprintf(w, "%s %s\n", f.colorize(text.FgHiBlue, "Summary:"), Summarize(results))
	return nil
}

// Plans renders the plan listing.
func (f *TableFormatter) Plans(w io.Writer, plans []PlanRow) error {
	if len(plans) == 0 {
		fmt.Fprintf(w, "%s %s\n", f.colorize(text.FgYellow, "📋"), f.colorize(text.FgYellow, "No plans found"))
		return nil
	}

	t := f.createTable(w)
	t.AppendHeader(table.Row{
		f.colorize(text.FgHiCyan, "NAME"),
		f.colorize(text.FgHiCyan, "ENABLED"),
		f.colorize(text.FgHiCyan, "SUMMARY"),
		f.colorize(text.FgHiCyan, "IMPORT"),
	})
	for _, p := range plans {
		enabled := f.colorize(text.FgGreen, "yes")
		if !p.Enabled {
			enabled = f.colorize(text.FgRed, "no")
		}
		t.AppendRow(table.Row{p.Name, enabled, truncate(p.Summary, maxCellLen), p.Import})
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) outcome(o step.Outcome) string {
	switch o {
	case step.OutcomePass:
		return f.colorize(text.FgGreen, string(o))
	case step.OutcomeFail:
		return f.colorize(text.FgRed, string(o))
	case step.OutcomeError:
		return f.colorize(text.FgMagenta, string(o))
	default:
		return f.colorize(text.FgYellow, string(o))
	}
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}
