package step

import "fmt"

// SpecificationError reports invalid metadata, such as an unknown "how" or a
// malformed phase definition.
type SpecificationError struct {
	Message string
	Err     error
}

func (e *SpecificationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *SpecificationError) Unwrap() error { return e.Err }

// NewSpecificationError constructs a SpecificationError with a formatted message.
func NewSpecificationError(err error, format string, args ...interface{}) *SpecificationError {
	return &SpecificationError{Message: fmt.Sprintf(format, args...), Err: err}
}

// GeneralError reports a fatal condition which aborts the current plan.
type GeneralError struct {
	Message string
	Err     error
}

func (e *GeneralError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *GeneralError) Unwrap() error { return e.Err }

// NewGeneralError constructs a GeneralError with a formatted message.
func NewGeneralError(err error, format string, args ...interface{}) *GeneralError {
	return &GeneralError{Message: fmt.Sprintf(format, args...), Err: err}
}
