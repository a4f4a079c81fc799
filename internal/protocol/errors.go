package protocol

import (
	"fmt"

	"github.com/roach88/ledgerd/internal/ledger"
)

// Wire error codes. Code 1 is unused.
const (
	CodeJSON          = 2
	CodeKind          = 3
	CodeArgument      = 4
	CodeValidation    = 5
	CodeSerialization = 6
	CodeStore         = 7
	CodeInternal      = 8
	CodeUnavailable   = 9
	CodeRateLimited   = 10
)

var codeKinds = map[int]string{
	CodeJSON:          "JSON Error",
	CodeKind:          "Kind Error",
	CodeArgument:      "Argument Error",
	CodeValidation:    "Validation Error",
	CodeSerialization: "Serialization Error",
	CodeStore:         "Store Error",
	CodeInternal:      "Internal Error",
	CodeUnavailable:   "Service Unavailable",
	CodeRateLimited:   "Rate Limited",
}

// KindOf returns the error kind label for a wire code.
func KindOf(code int) string {
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	return "Error"
}

// ErrorBody is the wire form of every error the service writes.
type ErrorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Details string `json:"details"`
}

func (b ErrorBody) Error() string {
	return fmt.Sprintf("%s (%d): %s", b.Kind, b.Code, b.Details)
}

// NewErrorBody builds an error body, deriving the kind label from code.
func NewErrorBody(code int, format string, args ...any) ErrorBody {
	return ErrorBody{Code: code, Kind: KindOf(code), Details: fmt.Sprintf(format, args...)}
}

// DecodeError reports a message that could not become a Command. No
// command is produced alongside it.
type DecodeError struct {
	Code    int
	Kind    string
	Details string
}

func newDecodeError(code int, format string, args ...any) *DecodeError {
	return &DecodeError{Code: code, Kind: KindOf(code), Details: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Details)
}

// Body returns the wire form of the error.
func (e *DecodeError) Body() ErrorBody {
	return ErrorBody{Code: e.Code, Kind: e.Kind, Details: e.Details}
}

// commandErrorBody maps a worker error onto the wire. Store and internal
// details stay in the service log.
func commandErrorBody(ce *ledger.CommandError) ErrorBody {
	switch ce.Code {
	case ledger.ErrCodeValidation:
		return NewErrorBody(CodeValidation, "%s: %s", ce.Kind, ce.Message)
	case ledger.ErrCodeSerialization:
		return NewErrorBody(CodeSerialization, "%s: %s", ce.Kind, ce.Message)
	case ledger.ErrCodeStoreExecution:
		return NewErrorBody(CodeStore, "%s: %s", ce.Kind, ce.Message)
	default:
		return NewErrorBody(CodeInternal, "%s: command failed", ce.Kind)
	}
}
