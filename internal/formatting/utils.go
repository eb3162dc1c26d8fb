package formatting

import (
	"encoding/json"
	"fmt"
	"strings"

	"tmt/internal/step"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It handles marshaling errors gracefully by falling back to fmt.Sprintf.
//
// Example:
//
//	data := map[string]interface{}{"name": "test", "value": 42}
//	fmt.Println(formatting.PrettyJSON(data))
//	// Output:
//	// {
//	//   "name": "test",
//	//   "value": 42
//	// }
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Summary counts results per outcome.
type Summary map[step.Outcome]int

// Summarize counts the outcomes of results.
func Summarize(results []step.Result) Summary {
	s := Summary{}
	for _, r := range results {
		s[r.Outcome]++
	}
	return s
}

// String renders the summary in a fixed outcome order, e.g.
// "2 passed, 1 failed".
func (s Summary) String() string {
	labels := []struct {
		outcome step.Outcome
		label   string
	}{
		{step.OutcomePass, "passed"},
		{step.OutcomeFail, "failed"},
		{step.OutcomeError, "errored"},
		{step.OutcomeSkip, "skipped"},
		{step.OutcomePending, "pending"},
	}
	out := ""
	for _, l := range labels {
		if n := s[l.outcome]; n > 0 {
			if out != "" {
				out += ", "
			}
			out += fmt.Sprintf("%d %s", n, l.label)
		}
	}
	if out == "" {
		return "no results"
	}
	return out
}

// maxCellLen limits free-text table cells such as summaries and notes.
const maxCellLen = 60

// truncate collapses whitespace into single spaces and shortens s to at most
// max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
