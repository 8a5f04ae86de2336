package policy

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMatch        = errors.New("unknown match type")
	ErrUnknownAction       = errors.New("unknown action")
	ErrUnknownConsent      = errors.New("unknown consent state")
	ErrUnknownMode         = errors.New("unknown match mode")
	ErrUnknownChannel      = errors.New("unknown channel")
	ErrHourOutOfRange      = errors.New("hour out of range")
	ErrEmptyTriggers       = errors.New("rule has no usable triggers")
	ErrMissingPayload      = errors.New("action payload is incomplete")
	ErrNegativeThrottle    = errors.New("throttle must not be negative")
	ErrInvalidTemplateName = errors.New("invalid template name")
	ErrUnknownTimezone     = errors.New("unknown timezone")
)

// ValidationError reports a malformed value rejected at construction time.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field string, err error, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Err: err}
}
