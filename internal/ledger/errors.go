package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a failed command.
type ErrorCode string

const (
	// ErrCodeValidation marks an unsupported kind/selector combination or
	// arguments the worker cannot act on.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeSerialization marks a result row that does not fit LedgerEntry.
	ErrCodeSerialization ErrorCode = "SERIALIZATION"

	// ErrCodeStoreExecution marks a statement or transaction failure. The
	// transaction has been rolled back.
	ErrCodeStoreExecution ErrorCode = "STORE_EXECUTION"

	// ErrCodeInternal marks a recovered panic inside command handling.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ErrNotImplemented is wrapped by validation errors for kinds that are
// routed but have no handler yet.
var ErrNotImplemented = errors.New("not implemented")

// CommandError is the error carried back to a caller in an ErrorReply.
type CommandError struct {
	Code    ErrorCode
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a CommandError with ErrCodeValidation.
func NewValidationError(kind Kind, format string, args ...any) *CommandError {
	return &CommandError{
		Code:    ErrCodeValidation,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewStoreError wraps a store failure for kind.
func NewStoreError(kind Kind, err error) *CommandError {
	return &CommandError{
		Code:    ErrCodeStoreExecution,
		Kind:    kind,
		Message: "store execution failed",
		Err:     err,
	}
}

// SerializationError reports the first result row that could not be turned
// into a LedgerEntry. No rows are returned alongside it.
type SerializationError struct {
	Row int
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize row %d: %v", e.Row, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// AsCommandError converts any handler error into a CommandError for kind.
// Errors that already are CommandErrors pass through.
func AsCommandError(kind Kind, err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	var se *SerializationError
	if errors.As(err, &se) {
		return &CommandError{
			Code:    ErrCodeSerialization,
			Kind:    kind,
			Message: fmt.Sprintf("row %d does not match the ledger layout", se.Row),
			Err:     err,
		}
	}
	return NewStoreError(kind, err)
}

// IsValidation returns true if err is a validation CommandError.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsSerialization returns true if err is or wraps a SerializationError.
func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se) || hasCode(err, ErrCodeSerialization)
}

// IsStoreExecution returns true if err is a store execution CommandError.
func IsStoreExecution(err error) bool {
	return hasCode(err, ErrCodeStoreExecution)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
