// Package errors provides the structured error type shared by the schema
// registry, the validators, the metrics exporters and the MCP service.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode is a stable, machine readable error identifier
type ErrorCode string

// Common error codes
const (
	// General errors
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeTypeMismatch     ErrorCode = "TYPE_MISMATCH"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeNotFound         ErrorCode = "NOT_FOUND"

	// Schema/Registry errors
	CodeSchemaInvalid         ErrorCode = "SCHEMA_INVALID"
	CodeToolNotFound          ErrorCode = "TOOL_NOT_FOUND"
	CodeToolAlreadyRegistered ErrorCode = "TOOL_ALREADY_REGISTERED"
	CodeToolExecutionFailed   ErrorCode = "TOOL_EXECUTION_FAILED"

	// Request envelope errors
	CodeParseError      ErrorCode = "PARSE_ERROR"
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	CodeMethodNotFound  ErrorCode = "METHOD_NOT_FOUND"

	// Metrics export errors
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeExportFailed      ErrorCode = "EXPORT_FAILED"

	// Infrastructure errors
	CodeIOError              ErrorCode = "IO_ERROR"
	CodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	CodeNetworkError         ErrorCode = "NETWORK_ERROR"
)

// ErrorType categorizes the error
type ErrorType string

const (
	ErrTypeInternal      ErrorType = "internal"
	ErrTypeValidation    ErrorType = "validation"
	ErrTypeNotFound      ErrorType = "not_found"
	ErrTypeConflict      ErrorType = "conflict"
	ErrTypeTool          ErrorType = "tool"
	ErrTypeIO            ErrorType = "io"
	ErrTypeNetwork       ErrorType = "network"
	ErrTypeConfiguration ErrorType = "configuration"
	ErrTypeMetrics       ErrorType = "metrics"
)

// ErrorSeverity indicates the error severity
type ErrorSeverity string

const (
	SeverityUnknown  ErrorSeverity = "unknown"
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorContext provides additional error context
type ErrorContext map[string]interface{}

// RichError provides comprehensive error information
type RichError struct {
	Code     ErrorCode     `json:"code"`
	Message  string        `json:"message"`
	Type     ErrorType     `json:"type"`
	Severity ErrorSeverity `json:"severity"`

	Context   ErrorContext    `json:"context,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Location  *SourceLocation `json:"location,omitempty"`

	Cause error `json:"-"`

	Suggestions []string `json:"suggestions,omitempty"`
}

// SourceLocation captures where the error occurred
type SourceLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Error implements the error interface
func (e *RichError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Location != nil {
		sb.WriteString(fmt.Sprintf(" (at %s:%d)", e.Location.File, e.Location.Line))
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" - caused by: %v", e.Cause))
	}

	return sb.String()
}

// Unwrap returns the cause of the error
func (e *RichError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RichError carrying the same code.
// Sentinels such as ErrToolNotFound match any error built with their code.
func (e *RichError) Is(target error) bool {
	var other *RichError
	if errors.As(target, &other) {
		return other.Code != "" && e.Code == other.Code
	}
	return false
}

// MarshalJSON customizes JSON serialization
func (e *RichError) MarshalJSON() ([]byte, error) {
	type Alias RichError
	data, err := json.Marshal(&struct {
		*Alias
		CauseMessage string `json:"cause,omitempty"`
	}{
		Alias: (*Alias)(e),
		CauseMessage: func() string {
			if e.Cause != nil {
				return e.Cause.Error()
			}
			return ""
		}(),
	})
	if err != nil {
		return []byte(fmt.Sprintf(`{"code":%q,"message":%q,"error":"marshal_failed"}`, e.Code, e.Message)), nil
	}
	return data, nil
}

// ErrorBuilder provides a fluent API for constructing RichError instances
type ErrorBuilder struct {
	err *RichError
}

// NewError creates a new error builder
func NewError() *ErrorBuilder {
	return &ErrorBuilder{
		err: &RichError{
			Timestamp: time.Now(),
			Type:      ErrTypeInternal,
			Severity:  SeverityMedium,
		},
	}
}

// Code sets the error code
func (b *ErrorBuilder) Code(code ErrorCode) *ErrorBuilder {
	b.err.Code = code
	return b
}

// Message sets the error message
func (b *ErrorBuilder) Message(message string) *ErrorBuilder {
	b.err.Message = message
	return b
}

// Messagef sets a formatted error message.
// A %w verb records the matching error argument as the cause.
func (b *ErrorBuilder) Messagef(format string, args ...interface{}) *ErrorBuilder {
	if strings.Contains(format, "%w") {
		for _, arg := range args {
			if err, ok := arg.(error); ok {
				b.err.Cause = err
				format = strings.ReplaceAll(format, "%w", "%v")
				break
			}
		}
	}
	b.err.Message = fmt.Sprintf(format, args...)
	return b
}

// Type sets the error type
func (b *ErrorBuilder) Type(errType ErrorType) *ErrorBuilder {
	b.err.Type = errType
	return b
}

// Severity sets the error severity
func (b *ErrorBuilder) Severity(severity ErrorSeverity) *ErrorBuilder {
	b.err.Severity = severity
	return b
}

// Context adds a context key-value pair
func (b *ErrorBuilder) Context(key string, value interface{}) *ErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(ErrorContext)
	}
	b.err.Context[key] = value
	return b
}

// Cause sets the error cause
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Suggestion adds a suggestion for resolution
func (b *ErrorBuilder) Suggestion(suggestion string) *ErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, suggestion)
	return b
}

// WithLocation captures the source location of the caller of the constructor
func (b *ErrorBuilder) WithLocation() *ErrorBuilder {
	if pc, file, line, ok := runtime.Caller(2); ok {
		b.err.Location = &SourceLocation{
			File:     file,
			Line:     line,
			Function: runtime.FuncForPC(pc).Name(),
		}
	}
	return b
}

// Build returns the constructed RichError
func (b *ErrorBuilder) Build() *RichError {
	return b.err
}

// CodeOf returns the code of the first RichError in the chain, or CodeUnknown
func CodeOf(err error) ErrorCode {
	var richErr *RichError
	if errors.As(err, &richErr) {
		return richErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether any RichError in the chain carries code
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if richErr, ok := err.(*RichError); ok && richErr.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
