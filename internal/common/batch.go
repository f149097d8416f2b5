package common

import (
	"fmt"
	"strings"
)

// BatchFailure records one failed item of a best-effort batch.
type BatchFailure struct {
	Err  error
	Item string
}

// BatchError reports the failed items of a batch whose other items were
// applied. Completed items are not rolled back.
type BatchError struct {
	Op        string
	Failures  []BatchFailure
	Succeeded int
}

// Add records a failure.
func (e *BatchError) Add(item string, err error) {
	e.Failures = append(e.Failures, BatchFailure{Item: item, Err: err})
}

// ErrOrNil returns e when at least one item failed, nil otherwise.
func (e *BatchError) ErrOrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Item, f.Err))
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)",
		e.Op, len(e.Failures), len(e.Failures)+e.Succeeded, strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
