package series

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies series failures
type ErrorType string

const (
	ErrConflict          ErrorType = "conflict"            // locked by another user
	ErrScopeNotPermitted ErrorType = "scope_not_permitted" // future/all update changed more than the time of day
	ErrEmptySeries       ErrorType = "empty_series"        // rule expanded to zero occurrences
	ErrNotInSeries       ErrorType = "not_in_series"
	ErrInvalidScope      ErrorType = "invalid_scope"
)

// Error represents a series-level failure
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is or wraps a series Error of type t
func IsType(err error, t ErrorType) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Type == t
}

func newError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// BatchError reports a partially applied resolution. Patches are absolute
// assignments and the Applier skips creations and deletions that already
// happened, so retrying the whole resolution converges.
type BatchError struct {
	Applied []string
	Failed  string
	Pending []string
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("apply failed at %s (applied: [%s], pending: [%s]): %v",
		e.Failed, strings.Join(e.Applied, ","), strings.Join(e.Pending, ","), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
