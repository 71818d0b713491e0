package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/signbank/internal/validate"
)

// ErrorKind categorizes export failures.
type ErrorKind string

const (
	// KindValidation: samples were rejected and none could be fixed.
	KindValidation ErrorKind = "VALIDATION_FAILED"

	// KindNoSamples: the post-validation reload found nothing to merge.
	KindNoSamples ErrorKind = "NO_SAMPLES"

	// KindMerge: the merge stage failed (shape contract or I/O).
	KindMerge ErrorKind = "MERGE_FAILED"
)

// Error is the single failure an export surfaces to its caller.
// Report is set for KindValidation and carries every per-sample outcome.
type Error struct {
	Kind    ErrorKind
	Message string
	Report  *validate.Report
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail is the caller-facing message: the stage message, plus the
// underlying cause for merge failures.
func (e *Error) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// HTTPStatus maps the kind onto the trigger surface's status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNoSamples:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsValidationError reports whether err is a validation failure.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.Kind == KindValidation
}

// IsNoSamplesError reports whether err is an empty-dataset failure.
func IsNoSamplesError(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.Kind == KindNoSamples
}
