package closing

import (
	"fmt"
	"strings"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
)

// Closing error codes
const (
	CodeInvalidAmount              = valueobject.CodeInvalidAmount
	CodeMissingRequiredField       = "MISSING_REQUIRED_FIELD"
	CodeMissingMandatoryAttachment = "MISSING_MANDATORY_ATTACHMENT"
	CodeInvalidTransition          = "INVALID_TRANSITION"
	CodeStaleRecord                = "STALE_RECORD"
)

// Sentinel errors for errors.Is checks; DomainError.Is matches on code.
var (
	ErrInvalidAmount              = shared.NewDomainError(CodeInvalidAmount, "Invalid amount")
	ErrMissingRequiredField       = shared.NewDomainError(CodeMissingRequiredField, "Missing required field")
	ErrMissingMandatoryAttachment = shared.NewDomainError(CodeMissingMandatoryAttachment, "Withdrawal requires at least one attachment")
	ErrInvalidTransition          = shared.NewDomainError(CodeInvalidTransition, "Invalid transition")
	ErrStaleRecord                = shared.NewDomainError(CodeStaleRecord, "Closing record was modified by another request")
)

func invalidTransition(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidTransition, fmt.Sprintf(format, args...))
}

// NewStaleRecordError reports a version mismatch on a closing record
func NewStaleRecordError(expected, actual int) *shared.DomainError {
	return shared.NewDomainError(CodeStaleRecord,
		fmt.Sprintf("Closing record version is %d, expected %d; reload and retry", actual, expected))
}

// FieldError is one field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries every failed check in validation order.
// It unwraps to the first failure so callers can switch on the blocking code.
type ValidationError struct {
	Fields []FieldError
}

// Error returns the summary message of the first blocking failure
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Message
}

// First returns the highest-priority failure
func (e *ValidationError) First() FieldError {
	if len(e.Fields) == 0 {
		return FieldError{Code: shared.CodeInvalidInput, Message: "validation failed"}
	}
	return e.Fields[0]
}

// Unwrap exposes the first failure as a DomainError
func (e *ValidationError) Unwrap() error {
	first := e.First()
	return shared.NewDomainError(first.Code, first.Message)
}

// Summary joins all messages, for logs
func (e *ValidationError) Summary() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return strings.Join(msgs, "; ")
}

// HasCode reports whether any failure carries code
func (e *ValidationError) HasCode(code string) bool {
	for _, f := range e.Fields {
		if f.Code == code {
			return true
		}
	}
	return false
}
