// Package validators checks MCP request envelopes and tool parameters
// against the schemas held in a schemas.Registry.
package validators

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

const (
	DefaultMaxErrors       = 100
	DefaultMaxRequestBytes = 1 << 20
)

// Options tune validation behavior
type Options struct {
	// StrictMode turns unknown tools and unknown MCP methods into errors.
	StrictMode bool `json:"strict_mode" yaml:"strict_mode"`
	// MaxErrors caps the number of errors kept on a result.
	MaxErrors int `json:"max_errors" yaml:"max_errors" validate:"gte=0"`
	// FailFast stops after the first error.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
	// MaxRequestBytes caps the size of a request envelope.
	MaxRequestBytes int `json:"max_request_bytes" yaml:"max_request_bytes" validate:"gte=0"`
}

// DefaultOptions returns the non-strict defaults
func DefaultOptions() Options {
	return Options{
		MaxErrors:       DefaultMaxErrors,
		MaxRequestBytes: DefaultMaxRequestBytes,
	}
}

// Validator validates tool parameters and request envelopes
type Validator struct {
	registry *schemas.Registry
	opts     Options
	structs  *validator.Validate
	logger   zerolog.Logger
}

// NewValidator binds a validator to registry. A nil registry follows
// schemas.DefaultRegistry, including later swaps.
func NewValidator(registry *schemas.Registry, opts Options, logger zerolog.Logger) *Validator {
	if opts.MaxErrors == 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	if opts.MaxRequestBytes == 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}

	structs := validator.New(validator.WithRequiredStructEnabled())
	structs.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		registry: registry,
		opts:     opts,
		structs:  structs,
		logger:   logger.With().Str("component", "validator").Logger(),
	}
}

// Options returns the options in effect
func (v *Validator) Options() Options {
	return v.opts
}

func (v *Validator) currentRegistry() *schemas.Registry {
	if v.registry != nil {
		return v.registry
	}
	return schemas.DefaultRegistry()
}

func (v *Validator) newResult(name string) *ValidationResult {
	maxErrors := v.opts.MaxErrors
	if v.opts.FailFast {
		maxErrors = 1
	}
	return NewValidationResult(name, maxErrors)
}

// ValidateToolParameters validates params against the schema registered for toolName.
// A nil params map is treated as an empty object.
func (v *Validator) ValidateToolParameters(toolName string, params map[string]interface{}) *ValidationResult {
	start := time.Now()
	result := v.newResult("tool_parameters")
	result.Metadata.Tool = toolName
	defer result.finish(start)

	if params == nil {
		params = map[string]interface{}{}
	}
	v.validateParams(result, toolName, params, "")

	if !result.Valid {
		v.logger.Debug().
			Str("tool", toolName).
			Int("errors", len(result.Errors)).
			Str("request_id", result.Metadata.RequestID).
			Msg("Tool parameters rejected")
	}
	return result
}

func (v *Validator) validateParams(result *ValidationResult, toolName string, params interface{}, prefix string) {
	if toolName == "" {
		result.AddError(NewValidationError(errors.CodeMissingParameter, "tool name is required", SeverityHigh).
			WithField("tool"))
		return
	}

	schema, err := v.currentRegistry().Get(toolName)
	if err != nil {
		finding := NewValidationError(errors.CodeToolNotFound, fmt.Sprintf("tool %s is not registered", toolName), SeverityMedium).
			WithValue(toolName).
			WithSuggestion("Use list_tool_schemas to see the registered tools")
		if v.opts.StrictMode {
			result.AddError(finding)
		} else {
			finding.Severity = SeverityLow
			result.AddWarning(finding)
		}
		return
	}

	compiled, err := schema.Compiled()
	if err != nil {
		result.AddError(NewValidationError(errors.CodeSchemaInvalid, err.Error(), SeverityCritical))
		return
	}

	doc, err := normalize(params)
	if err != nil {
		result.AddError(NewValidationError(errors.CodeInvalidParameter, "parameters are not JSON encodable: "+err.Error(), SeverityHigh).
			WithField(prefix))
		return
	}

	err = compiled.Validate(doc)
	if err == nil {
		return
	}

	var schemaErr *jsonschema.ValidationError
	if !stderrors.As(err, &schemaErr) {
		result.AddError(NewValidationError(errors.CodeInternalError, err.Error(), SeverityCritical))
		return
	}

	for _, leaf := range leafErrors(schemaErr) {
		for _, finding := range toFindings(leaf, doc, prefix) {
			result.AddError(finding)
		}
	}
}

// normalize round-trips params through JSON so the schema validator only
// sees JSON types. Numbers are kept as json.Number.
func normalize(params interface{}) (interface{}, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func leafErrors(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		out = append(out, leafErrors(cause)...)
	}
	return out
}

var quotedName = regexp.MustCompile(`'([^']*)'`)

func toFindings(leaf *jsonschema.ValidationError, doc interface{}, prefix string) []*ValidationError {
	keyword := lastSegment(leaf.KeywordLocation)
	field := joinField(prefix, pointerToField(leaf.InstanceLocation))

	switch keyword {
	case "required":
		var out []*ValidationError
		for _, m := range quotedName.FindAllStringSubmatch(leaf.Message, -1) {
			out = append(out, NewValidationError(errors.CodeMissingParameter,
				fmt.Sprintf("required parameter '%s' is missing", m[1]), SeverityHigh).
				WithField(joinField(field, m[1])).
				WithRule(leaf.KeywordLocation).
				WithSuggestion(fmt.Sprintf("Provide a value for '%s'", m[1])))
		}
		if len(out) > 0 {
			return out
		}
		return []*ValidationError{
			NewValidationError(errors.CodeMissingParameter, leaf.Message, SeverityHigh).
				WithField(field).
				WithRule(leaf.KeywordLocation),
		}
	case "additionalProperties":
		var out []*ValidationError
		for _, m := range quotedName.FindAllStringSubmatch(leaf.Message, -1) {
			out = append(out, NewValidationError(errors.CodeInvalidParameter,
				fmt.Sprintf("unknown parameter '%s'", m[1]), SeverityMedium).
				WithField(joinField(field, m[1])).
				WithRule(leaf.KeywordLocation).
				WithSuggestion("Remove parameters that are not declared in the tool schema"))
		}
		if len(out) > 0 {
			return out
		}
	case "type":
		return []*ValidationError{
			NewValidationError(errors.CodeTypeMismatch, leaf.Message, SeverityMedium).
				WithField(field).
				WithRule(leaf.KeywordLocation).
				WithValue(lookupPointer(doc, leaf.InstanceLocation)),
		}
	}

	return []*ValidationError{
		NewValidationError(errors.CodeInvalidParameter, leaf.Message, SeverityMedium).
			WithField(field).
			WithRule(leaf.KeywordLocation).
			WithValue(lookupPointer(doc, leaf.InstanceLocation)),
	}
}

func lastSegment(pointer string) string {
	if i := strings.LastIndex(pointer, "/"); i >= 0 {
		return pointer[i+1:]
	}
	return pointer
}

func splitPointer(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}

func pointerToField(pointer string) string {
	return strings.Join(splitPointer(pointer), ".")
}

func lookupPointer(doc interface{}, pointer string) interface{} {
	current := doc
	for _, part := range splitPointer(pointer) {
		switch node := current.(type) {
		case map[string]interface{}:
			current = node[part]
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
