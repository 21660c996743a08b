package recurrence

import (
	"errors"
	"fmt"
)

// InvalidRuleError reports a malformed recurrence definition
type InvalidRuleError struct {
	Field   string // rule field that failed validation
	Value   string // offending value
	Message string
	Err     error
}

func (e *InvalidRuleError) Error() string {
	msg := fmt.Sprintf("invalid recurrence rule: %s %q: %s", e.Field, e.Value, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRuleError) Unwrap() error {
	return e.Err
}

// IsInvalidRule reports whether err is or wraps an InvalidRuleError
func IsInvalidRule(err error) bool {
	var target *InvalidRuleError
	return errors.As(err, &target)
}

func invalid(field, value, message string) error {
	return &InvalidRuleError{Field: field, Value: value, Message: message}
}
