package core

import "github.com/pkg/errors"

// ErrForbidden is returned when the acting user may not touch the target entity.
var ErrForbidden = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// RuleError is a business rule violation. It is detected before any mutation happens.
type RuleError struct {
	Code    string
	Message string
}

func NewRuleError(code, msg string) *RuleError {
	return &RuleError{Code: code, Message: msg}
}

func (err *RuleError) Error() string {
	return err.Message
}

// ErrInvalidStateTransition is shared by every state machine.
var ErrInvalidStateTransition = NewRuleError("invalid_state_transition", "operation not allowed in the current state")

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err *NotFoundError) Error() string {
	return err.Resource + " not found"
}

// IsNotFound reports whether the cause of err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
