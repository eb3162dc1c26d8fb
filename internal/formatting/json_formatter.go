package formatting

import (
	"fmt"
	"io"

	"tmt/internal/step"
)

// JSONFormatter provides JSON output formatting
type JSONFormatter struct{}

func (f *JSONFormatter) Results(w io.Writer, plan string, results []step.Result) error {
	if results == nil {
		results = []step.Result{}
	}
	_, err := fmt.Fprintln(w, PrettyJSON(planResults{Plan: plan, Results: results}))
	return err
}

func (f *JSONFormatter) Plans(w io.Writer, plans []PlanRow) error {
	if plans == nil {
		plans = []PlanRow{}
	}
	_, err := fmt.Fprintln(w, PrettyJSON(plans))
	return err
}
