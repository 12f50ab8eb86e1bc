package connector

import (
	"errors"
	"fmt"

	"github.com/openfroyo/sqlconnector/pkg/values"
)

// ErrorClass classifies connector failures for callers and metrics.
type ErrorClass string

const (
	// ErrorClassSelectorUnresolved indicates a selector matched no row.
	// It is the one recoverable class: Upsert falls back to Create on it.
	ErrorClassSelectorUnresolved ErrorClass = "selector_unresolved"

	// ErrorClassDriver indicates the storage engine rejected an operation.
	// Examples: constraint violations, SQL errors, failed attachments.
	ErrorClassDriver ErrorClass = "driver"

	// ErrorClassValueDecode indicates a column value could not be converted
	// to the declared domain type.
	ErrorClassValueDecode ErrorClass = "value_decode"

	// ErrorClassContractViolation indicates the caller asked for something
	// the connector does not do, such as decoding a relation column or
	// deleting a node.
	ErrorClassContractViolation ErrorClass = "contract_violation"

	// ErrorClassPoolExhaustion indicates no connection could be checked out.
	ErrorClassPoolExhaustion ErrorClass = "pool_exhaustion"
)

// ErrNotSupported is wrapped by contract violations for operations that are
// deliberately not implemented.
var ErrNotSupported = errors.New("operation not supported")

// ConnectorError is a classified error with context.
// nolint:revive // ConnectorError is intentionally named to distinguish from driver errors
type ConnectorError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Operation is the connector operation that failed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Is matches another ConnectorError of the same class.
func (e *ConnectorError) Is(target error) bool {
	t, ok := target.(*ConnectorError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewDriverError wraps an engine failure.
func NewDriverError(message string, err error) *ConnectorError {
	return &ConnectorError{Class: ErrorClassDriver, Message: message, Err: err}
}

// NewValueDecodeError reports a column that could not be decoded.
func NewValueDecodeError(message string, err error) *ConnectorError {
	return &ConnectorError{Class: ErrorClassValueDecode, Message: message, Err: err}
}

// NewContractViolation reports a request outside the connector's contract.
func NewContractViolation(message string, err error) *ConnectorError {
	return &ConnectorError{Class: ErrorClassContractViolation, Message: message, Err: err}
}

// NewPoolExhaustionError reports a failed connection checkout.
func NewPoolExhaustionError(message string, err error) *ConnectorError {
	return &ConnectorError{Class: ErrorClassPoolExhaustion, Message: message, Err: err}
}

// NotSupported reports an operation the connector deliberately does not
// implement.
func NotSupported(operation string) *ConnectorError {
	return NewContractViolation(operation+" is not supported by the sqlite connector", ErrNotSupported).
		WithOperation(operation)
}

// WithOperation adds operation context to an error.
func (e *ConnectorError) WithOperation(operation string) *ConnectorError {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *ConnectorError) WithDetail(key string, value interface{}) *ConnectorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// SelectorUnresolvedError reports that a node selector matched no row.
type SelectorUnresolvedError struct {
	Model string
	Field string
	Value values.Value
}

// Error implements the error interface.
func (e *SelectorUnresolvedError) Error() string {
	return fmt.Sprintf("[%s] no %s where %s = %s", ErrorClassSelectorUnresolved, e.Model, e.Field, e.Value)
}

// IsSelectorUnresolved returns true if no row matched a selector.
func IsSelectorUnresolved(err error) bool {
	var e *SelectorUnresolvedError
	return errors.As(err, &e)
}

// IsDriverError returns true if the storage engine rejected an operation.
func IsDriverError(err error) bool {
	return hasClass(err, ErrorClassDriver)
}

// IsValueDecode returns true if a column value could not be decoded.
func IsValueDecode(err error) bool {
	return hasClass(err, ErrorClassValueDecode)
}

// IsContractViolation returns true if the request broke the connector's contract.
func IsContractViolation(err error) bool {
	return hasClass(err, ErrorClassContractViolation)
}

// IsPoolExhaustion returns true if no connection could be checked out.
func IsPoolExhaustion(err error) bool {
	return hasClass(err, ErrorClassPoolExhaustion)
}

// ClassOf returns the class of the outermost classified error in the chain,
// or the empty class for unclassified errors.
func ClassOf(err error) ErrorClass {
	for ; err != nil; err = errors.Unwrap(err) {
		switch e := err.(type) {
		case *ConnectorError:
			return e.Class
		case *SelectorUnresolvedError:
			return ErrorClassSelectorUnresolved
		}
	}
	return ""
}

func hasClass(err error, class ErrorClass) bool {
	var e *ConnectorError
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Class == class {
			return true
		}
		err = e.Err
	}
	return false
}
