package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a resolution failure.
type ErrorClass string

const (
	// ErrorClassSchema indicates a single value of the wrong shape.
	// Examples: a field that must be a string, an unsupported schema version.
	ErrorClassSchema ErrorClass = "schema"

	// ErrorClassReference indicates a name that does not resolve.
	// Examples: unknown toolchain, target, profile or configuration.
	ErrorClassReference ErrorClass = "reference"

	// ErrorClassInternal indicates a broken dependency graph or toolchain hierarchy.
	// Examples: duplicate package, missing installed dependency, tool type redefinition.
	ErrorClassInternal ErrorClass = "internal"

	// ErrorClassIO indicates a file system failure.
	// Examples: file not found, path is not a directory.
	ErrorClassIO ErrorClass = "io"

	// ErrorClassParse indicates a malformed descriptor that could not be decoded.
	ErrorClassParse ErrorClass = "parse"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Subject is the offending name or path, if applicable.
	Subject string `json:"subject,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Subject != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (subject=%s, operation=%s)", msg, e.Subject, e.Operation)
	} else if e.Subject != "" {
		msg = fmt.Sprintf("%s (subject=%s)", msg, e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewSchemaError creates a new schema violation error.
func NewSchemaError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassSchema,
		Message: message,
		Err:     err,
	}
}

// NewReferenceError creates a new missing-reference error.
func NewReferenceError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassReference,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new resolution invariant error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassInternal,
		Message: message,
		Err:     err,
	}
}

// NewIOError creates a new file system error.
func NewIOError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassIO,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates a new descriptor parse error.
func NewParseError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassParse,
		Message: message,
		Err:     err,
	}
}

// WithSubject adds the offending name or path to an error.
func (e *EngineError) WithSubject(subject string) *EngineError {
	e.Subject = subject
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first EngineError in the chain, or "".
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// CodeOf returns the code of the first EngineError in the chain, or "".
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSchema returns true if the error is classified as a schema violation.
func IsSchema(err error) bool {
	return ClassOf(err) == ErrorClassSchema
}

// IsReference returns true if the error is classified as a missing reference.
func IsReference(err error) bool {
	return ClassOf(err) == ErrorClassReference
}

// IsInternal returns true if the error is classified as an invariant violation.
func IsInternal(err error) bool {
	return ClassOf(err) == ErrorClassInternal
}

// IsIO returns true if the error is classified as a file system failure.
func IsIO(err error) bool {
	return ClassOf(err) == ErrorClassIO
}

// IsParse returns true if the error is classified as a parse failure.
func IsParse(err error) bool {
	return ClassOf(err) == ErrorClassParse
}

// Common error codes.
const (
	ErrCodeTypeMismatch       = "TYPE_MISMATCH"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	ErrCodeInvalidValue       = "INVALID_VALUE"
	ErrCodeNotDefined         = "NOT_DEFINED"
	ErrCodeNotPackage         = "NOT_PACKAGE"
	ErrCodeDuplicatePackage   = "DUPLICATE_PACKAGE"
	ErrCodeMissingPackage     = "MISSING_PACKAGE"
	ErrCodeTypeRedefinition   = "TYPE_REDEFINITION"
	ErrCodeCircularParent     = "CIRCULAR_PARENT"
	ErrCodeNoMatchingTool     = "NO_MATCHING_TOOL"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeNotDirectory       = "NOT_DIRECTORY"
	ErrCodeSyntax             = "SYNTAX_ERROR"
)
