package errors

// Sentinel errors for common cases. They compare by code through RichError.Is.
var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = NewError().Code(CodeToolNotFound).Message("tool not found").Build()

	// ErrToolAlreadyExists is returned when a tool name is registered twice.
	ErrToolAlreadyExists = NewError().Code(CodeToolAlreadyRegistered).Message("tool already exists").Build()

	// ErrInvalidParams is returned when tool parameters are invalid.
	ErrInvalidParams = NewError().Code(CodeInvalidParameter).Message("invalid parameters").Build()

	// ErrSchemaInvalid is returned when an input schema does not compile.
	ErrSchemaInvalid = NewError().Code(CodeSchemaInvalid).Message("invalid schema").Build()

	// ErrValidationFailed is returned by ValidationResult.Err.
	ErrValidationFailed = NewError().Code(CodeValidationFailed).Message("validation failed").Build()

	// ErrUnsupportedFormat is returned for unknown export formats.
	ErrUnsupportedFormat = NewError().Code(CodeUnsupportedFormat).Message("unsupported format").Build()
)
