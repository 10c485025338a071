package validators

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// MethodToolsCall is the MCP method whose arguments are checked against tool schemas
const MethodToolsCall = "tools/call"

var knownMethods = map[string]bool{
	"initialize":          true,
	"ping":                true,
	"tools/list":          true,
	MethodToolsCall:       true,
	"logging/setLevel":    true,
	"completion/complete": true,
}

var knownMethodPrefixes = []string{"resources/", "prompts/", "notifications/"}

// IsKnownMethod reports whether method is part of the MCP method set
func IsKnownMethod(method string) bool {
	if knownMethods[method] {
		return true
	}
	for _, prefix := range knownMethodPrefixes {
		if strings.HasPrefix(method, prefix) && len(method) > len(prefix) {
			return true
		}
	}
	return false
}

type requestEnvelope struct {
	JSONRPC string          `json:"jsonrpc" validate:"required,eq=2.0"`
	Method  string          `json:"method" validate:"required,printascii,max=128"`
	ID      json.RawMessage `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type toolCallParams struct {
	Name      json.RawMessage `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ValidateRequest validates a single JSON-RPC 2.0 MCP request envelope
func (v *Validator) ValidateRequest(payload []byte) *ValidationResult {
	start := time.Now()
	result := v.newResult("request")
	defer result.finish(start)

	v.validateEnvelope(result, payload)

	if !result.Valid {
		v.logger.Debug().
			Str("method", result.Metadata.Method).
			Str("code", string(result.FirstError().Code)).
			Str("request_id", result.Metadata.RequestID).
			Msg("Request rejected")
	}
	return result
}

func (v *Validator) validateEnvelope(result *ValidationResult, payload []byte) {
	if v.opts.MaxRequestBytes > 0 && len(payload) > v.opts.MaxRequestBytes {
		result.AddError(NewValidationError(errors.CodeRequestTooLarge,
			fmt.Sprintf("request is %d bytes, limit is %d", len(payload), v.opts.MaxRequestBytes), SeverityHigh))
		return
	}

	trimmed := bytes.TrimSpace(payload)
	if !json.Valid(trimmed) {
		result.AddError(NewValidationError(errors.CodeParseError, "request is not valid JSON", SeverityHigh))
		return
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		message := "request must be a JSON object"
		if trimmed[0] == '[' {
			message = "batch requests are not supported"
		}
		result.AddError(NewValidationError(errors.CodeInvalidRequest, message, SeverityHigh))
		return
	}

	var env requestEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		finding := NewValidationError(errors.CodeInvalidRequest, err.Error(), SeverityHigh)
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) {
			finding.Message = fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)
			finding.Field = typeErr.Field
		}
		result.AddError(finding)
		return
	}
	result.Metadata.Method = env.Method

	if err := v.structs.Struct(env); err != nil {
		var fieldErrs validator.ValidationErrors
		if !stderrors.As(err, &fieldErrs) {
			result.AddError(NewValidationError(errors.CodeInternalError, err.Error(), SeverityCritical))
			return
		}
		for _, fe := range fieldErrs {
			result.AddError(NewValidationError(errors.CodeInvalidRequest, envelopeMessage(fe), SeverityHigh).
				WithField(fe.Field()).
				WithRule(fe.Tag()).
				WithValue(fe.Value()))
		}
		return
	}

	notification := strings.HasPrefix(env.Method, "notifications/")
	if err := checkID(env.ID, notification); err != nil {
		result.AddError(err)
	}

	params := bytes.TrimSpace(env.Params)
	if len(params) > 0 && !bytes.Equal(params, []byte("null")) && params[0] != '{' && params[0] != '[' {
		result.AddError(NewValidationError(errors.CodeInvalidRequest, "params must be an object or an array", SeverityHigh).
			WithField("params").
			WithRule("type"))
	}

	if !IsKnownMethod(env.Method) {
		finding := NewValidationError(errors.CodeMethodNotFound, fmt.Sprintf("method %s is not an MCP method", env.Method), SeverityMedium).
			WithField("method").
			WithValue(env.Method)
		if v.opts.StrictMode {
			result.AddError(finding)
		} else {
			finding.Severity = SeverityLow
			result.AddWarning(finding)
		}
	}

	if env.Method == MethodToolsCall && result.Valid {
		v.validateToolCall(result, params)
	}
}

func (v *Validator) validateToolCall(result *ValidationResult, params []byte) {
	if len(params) == 0 || params[0] != '{' {
		result.AddError(NewValidationError(errors.CodeMissingParameter, "tools/call requires params with a tool name", SeverityHigh).
			WithField("params"))
		return
	}

	var call toolCallParams
	if err := json.Unmarshal(params, &call); err != nil {
		result.AddError(NewValidationError(errors.CodeInvalidRequest, err.Error(), SeverityHigh).WithField("params"))
		return
	}

	if len(call.Name) == 0 || bytes.Equal(call.Name, []byte("null")) {
		result.AddError(NewValidationError(errors.CodeMissingParameter, "required parameter 'name' is missing", SeverityHigh).
			WithField("params.name"))
		return
	}
	var name string
	if err := json.Unmarshal(call.Name, &name); err != nil {
		result.AddError(NewValidationError(errors.CodeTypeMismatch, "name must be a string", SeverityHigh).
			WithField("params.name").
			WithValue(string(call.Name)))
		return
	}
	result.Metadata.Tool = name

	args := bytes.TrimSpace(call.Arguments)
	var arguments map[string]interface{}
	if len(args) > 0 && !bytes.Equal(args, []byte("null")) {
		if args[0] != '{' {
			result.AddError(NewValidationError(errors.CodeTypeMismatch, "arguments must be an object", SeverityHigh).
				WithField("params.arguments"))
			return
		}
		dec := json.NewDecoder(bytes.NewReader(args))
		dec.UseNumber()
		if err := dec.Decode(&arguments); err != nil {
			result.AddError(NewValidationError(errors.CodeInvalidRequest, err.Error(), SeverityHigh).
				WithField("params.arguments"))
			return
		}
	}
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	v.validateParams(result, name, arguments, "params.arguments")
}

func checkID(raw json.RawMessage, notification bool) *ValidationError {
	id := bytes.TrimSpace(raw)
	if len(id) == 0 {
		return nil
	}
	switch c := id[0]; {
	case c == '"':
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		return nil
	case bytes.Equal(id, []byte("null")):
		if notification {
			return nil
		}
		return NewValidationError(errors.CodeInvalidRequest, "id must not be null for requests", SeverityHigh).
			WithField("id")
	}
	return NewValidationError(errors.CodeInvalidRequest, "id must be a string or a number", SeverityHigh).
		WithField("id").
		WithValue(string(id))
}

func envelopeMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "eq":
		return fmt.Sprintf("%s must be %q", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "printascii":
		return fmt.Sprintf("%s must contain printable ASCII only", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
