package pipeline

import (
	"errors"
	"fmt"
)

// PreconditionError marks a configuration-time failure: unsupported format
// or timeframe, missing input directory. It is raised before any I/O side
// effects and is fatal to the whole run.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// Preconditionf builds a PreconditionError with a formatted message.
func Preconditionf(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
