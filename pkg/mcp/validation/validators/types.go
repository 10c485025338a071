package validators

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Severity defines the severity of a validation finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ValidationError represents a single validation finding with its location
type ValidationError struct {
	Code        errors.ErrorCode `json:"code"`
	Message     string           `json:"message"`
	Type        errors.ErrorType `json:"type"`
	Severity    Severity         `json:"severity"`
	Field       string           `json:"field,omitempty"`
	Rule        string           `json:"rule,omitempty"`
	Value       interface{}      `json:"value,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// NewValidationError creates a validation error of type validation
func NewValidationError(code errors.ErrorCode, message string, severity Severity) *ValidationError {
	return &ValidationError{
		Code:     code,
		Message:  message,
		Type:     errors.ErrTypeValidation,
		Severity: severity,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] Field '%s': %s", e.Severity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
}

// WithField sets the dotted field path
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithRule sets the rule that produced the error
func (e *ValidationError) WithRule(rule string) *ValidationError {
	e.Rule = rule
	return e
}

// WithValue records the offending value
func (e *ValidationError) WithValue(value interface{}) *ValidationError {
	e.Value = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// ValidationMetadata contains metadata about the validation
type ValidationMetadata struct {
	RequestID   string    `json:"request_id"`
	ValidatedAt time.Time `json:"validated_at"`
	Validator   string    `json:"validator"`
	Tool        string    `json:"tool,omitempty"`
	Method      string    `json:"method,omitempty"`
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid     bool               `json:"valid"`
	Errors    []*ValidationError `json:"errors,omitempty"`
	Warnings  []*ValidationError `json:"warnings,omitempty"`
	Truncated bool               `json:"truncated,omitempty"`
	Metadata  ValidationMetadata `json:"metadata"`
	Duration  time.Duration      `json:"duration"`

	maxErrors int
}

// NewValidationResult creates a valid, empty result
func NewValidationResult(validator string, maxErrors int) *ValidationResult {
	return &ValidationResult{
		Valid: true,
		Metadata: ValidationMetadata{
			RequestID:   uuid.NewString(),
			ValidatedAt: time.Now().UTC(),
			Validator:   validator,
		},
		maxErrors: maxErrors,
	}
}

// AddError adds an error and marks the result invalid. Errors beyond the
// configured maximum are dropped and the result is flagged as truncated.
func (r *ValidationResult) AddError(err *ValidationError) {
	r.Valid = false
	if r.maxErrors > 0 && len(r.Errors) >= r.maxErrors {
		r.Truncated = true
		return
	}
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a warning to the result
func (r *ValidationResult) AddWarning(warning *ValidationError) {
	r.Warnings = append(r.Warnings, warning)
}

// Merge folds other into r
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, err := range other.Errors {
		r.AddError(err)
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.Valid {
		r.Valid = false
	}
	r.Truncated = r.Truncated || other.Truncated
}

// FirstError returns the first error, or nil
func (r *ValidationResult) FirstError() *ValidationError {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Err returns nil for a valid result and a VALIDATION_FAILED error otherwise
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}

	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Error())
	}

	builder := errors.NewError().
		Code(errors.CodeValidationFailed).
		Type(errors.ErrTypeValidation).
		Severity(errors.SeverityMedium).
		Messagef("validation failed: %s", strings.Join(messages, "; ")).
		Context("request_id", r.Metadata.RequestID).
		Context("error_count", len(r.Errors))
	if first := r.FirstError(); first != nil {
		builder = builder.Context("first_code", string(first.Code))
		for _, s := range first.Suggestions {
			builder = builder.Suggestion(s)
		}
	}
	return builder.Build()
}

// String summarizes the result on one line
func (r *ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("valid (%d warnings)", len(r.Warnings))
	}
	return fmt.Sprintf("invalid: %d errors, %d warnings", len(r.Errors), len(r.Warnings))
}

func (r *ValidationResult) finish(start time.Time) {
	r.Duration = time.Since(start)
}
