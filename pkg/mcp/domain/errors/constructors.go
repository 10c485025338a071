package errors

import (
	"fmt"
)

// MissingParameterError creates an error for missing required parameters
func MissingParameterError(paramName string) *RichError {
	return NewError().
		Code(CodeMissingParameter).
		Type(ErrTypeValidation).
		Severity(SeverityMedium).
		Messagef("Required parameter '%s' is missing", paramName).
		Context("parameter", paramName).
		Suggestion(fmt.Sprintf("Provide a value for the required parameter '%s'", paramName)).
		WithLocation().
		Build()
}

// InvalidParameterError creates an error for a parameter with an unacceptable value
func InvalidParameterError(paramName, reason string, value interface{}) *RichError {
	return NewError().
		Code(CodeInvalidParameter).
		Type(ErrTypeValidation).
		Severity(SeverityMedium).
		Messagef("Invalid parameter '%s': %s", paramName, reason).
		Context("parameter", paramName).
		Context("value", value).
		WithLocation().
		Build()
}

// ToolNotFoundError creates an error for an unregistered tool
func ToolNotFoundError(toolName string) *RichError {
	return NewError().
		Code(CodeToolNotFound).
		Type(ErrTypeNotFound).
		Severity(SeverityMedium).
		Messagef("tool %s not found", toolName).
		Context("tool", toolName).
		Suggestion("Use list_tool_schemas to see the registered tools").
		WithLocation().
		Build()
}

// ToolAlreadyRegisteredError creates an error for a duplicate tool registration
func ToolAlreadyRegisteredError(toolName string) *RichError {
	return NewError().
		Code(CodeToolAlreadyRegistered).
		Type(ErrTypeConflict).
		Severity(SeverityMedium).
		Messagef("tool %s is already registered", toolName).
		Context("tool", toolName).
		WithLocation().
		Build()
}

// InvalidSchemaError creates an error for a tool schema that cannot be compiled
func InvalidSchemaError(toolName string, cause error) *RichError {
	return NewError().
		Code(CodeSchemaInvalid).
		Type(ErrTypeValidation).
		Severity(SeverityHigh).
		Messagef("invalid input schema for tool %s", toolName).
		Context("tool", toolName).
		Cause(cause).
		Suggestion("Input schemas must be JSON Schema objects with \"type\": \"object\"").
		WithLocation().
		Build()
}

// InvalidRequestError creates an error for a malformed request envelope
func InvalidRequestError(code ErrorCode, reason string) *RichError {
	return NewError().
		Code(code).
		Type(ErrTypeValidation).
		Severity(SeverityMedium).
		Message(reason).
		WithLocation().
		Build()
}

// UnsupportedFormatError creates an error for an unknown export format
func UnsupportedFormatError(format string, supported []string) *RichError {
	return NewError().
		Code(CodeUnsupportedFormat).
		Type(ErrTypeValidation).
		Severity(SeverityLow).
		Messagef("unsupported format: %s", format).
		Context("format", format).
		Context("supported", supported).
		Suggestion(fmt.Sprintf("Use one of: %v", supported)).
		WithLocation().
		Build()
}

// ExportFailedError creates an error for a metrics export failure
func ExportFailedError(exporter string, cause error) *RichError {
	return NewError().
		Code(CodeExportFailed).
		Type(ErrTypeMetrics).
		Severity(SeverityHigh).
		Messagef("%s export failed: %w", exporter, cause).
		Context("exporter", exporter).
		WithLocation().
		Build()
}

// Wrap wraps err with a message, keeping the code of a wrapped RichError
func Wrap(err error, module, message string) *RichError {
	if err == nil {
		return nil
	}

	code, errType, severity := CodeInternalError, ErrTypeInternal, SeverityMedium
	if richErr, ok := err.(*RichError); ok {
		code, errType, severity = richErr.Code, richErr.Type, richErr.Severity
	}

	return NewError().
		Code(code).
		Type(errType).
		Severity(severity).
		Message(message).
		Context("module", module).
		Cause(err).
		WithLocation().
		Build()
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, module, format string, args ...interface{}) *RichError {
	return Wrap(err, module, fmt.Sprintf(format, args...))
}
