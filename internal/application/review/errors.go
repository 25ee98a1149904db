package review

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleNotFound is returned for unknown, finished or expired cycles.
	ErrCycleNotFound = errors.New("scan cycle not found")

	// ErrScopeBusy is returned when a cycle is already being decided, either
	// by a second Decide or Abandon or by a StartCycle that would replace it.
	ErrScopeBusy = errors.New("scope has a scan in progress")

	// ErrNonContiguous is returned when committing a range would leave
	// unscanned days with data between it and the checked range.
	ErrNonContiguous = errors.New("range is not contiguous with the checked range")

	// ErrInvalidDecision is returned for decisions naming unknown candidates
	// or a candidate both accepted and rejected.
	ErrInvalidDecision = errors.New("invalid decision")
)

// CollaboratorUnavailableError wraps a failed call to the data store.
type CollaboratorUnavailableError struct {
	Op  string
	Err error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is a CollaboratorUnavailableError.
func IsUnavailable(err error) bool {
	var target *CollaboratorUnavailableError
	return errors.As(err, &target)
}
