package plan

import (
	"fmt"

	"tmt/internal/step"
)

type (
	// SpecificationError reports invalid plan metadata.
	SpecificationError = step.SpecificationError
	// GeneralError reports a fatal condition which aborts the plan.
	GeneralError = step.GeneralError
)

// ResolutionError reports a failure to import remote plans. It names the
// importing plan and wraps the cause.
type ResolutionError struct {
	Plan string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to import remote plans of '%s': %v", e.Plan, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *ResolutionError) Unwrap() error { return e.Err }
