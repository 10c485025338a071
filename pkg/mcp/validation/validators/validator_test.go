package validators

import (
	stderrors "errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

func testRegistry(t *testing.T) *schemas.Registry {
	t.Helper()
	s, err := schemas.NewToolSchema("build_image", "Build an image", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"image": map[string]interface{}{"type": "string", "minLength": 1},
			"port":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 65535},
			"tags":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required":             []interface{}{"image"},
		"additionalProperties": false,
	})
	require.NoError(t, err)

	r := schemas.NewRegistry()
	require.NoError(t, r.Register(s))
	return r
}

func testValidator(t *testing.T, opts Options) *Validator {
	return NewValidator(testRegistry(t), opts, zerolog.Nop())
}

func TestValidateToolParameters(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		code   errors.ErrorCode
		field  string
		value  interface{}
	}{
		{name: "valid", params: map[string]interface{}{"image": "nginx", "port": 8080}},
		{name: "go typed slice", params: map[string]interface{}{"image": "nginx", "tags": []string{"latest", "v1"}}},
		{name: "missing required", params: map[string]interface{}{"port": 80}, code: errors.CodeMissingParameter, field: "image"},
		{name: "nil params", params: nil, code: errors.CodeMissingParameter, field: "image"},
		{name: "type mismatch", params: map[string]interface{}{"image": "nginx", "port": "http"}, code: errors.CodeTypeMismatch, field: "port", value: "http"},
		{name: "below minimum", params: map[string]interface{}{"image": "nginx", "port": 0}, code: errors.CodeInvalidParameter, field: "port"},
		{name: "unknown parameter", params: map[string]interface{}{"image": "nginx", "extra": true}, code: errors.CodeInvalidParameter, field: "extra"},
		{name: "array item type", params: map[string]interface{}{"image": "nginx", "tags": []interface{}{"ok", 3}}, code: errors.CodeTypeMismatch, field: "tags.1"},
	}

	v := testValidator(t, DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateToolParameters("build_image", tt.params)
			assert.Equal(t, "build_image", result.Metadata.Tool)
			assert.NotEmpty(t, result.Metadata.RequestID)

			if tt.code == "" {
				assert.True(t, result.Valid, "unexpected errors: %v", result.Errors)
				assert.NoError(t, result.Err())
				return
			}

			require.False(t, result.Valid)
			first := result.FirstError()
			require.NotNil(t, first)
			assert.Equal(t, tt.code, first.Code)
			assert.Equal(t, tt.field, first.Field)
			assert.NotEmpty(t, first.Rule)
			if tt.value != nil {
				assert.Equal(t, tt.value, first.Value)
			}
		})
	}
}

func TestValidateToolParameters_UnknownTool(t *testing.T) {
	lenient := testValidator(t, DefaultOptions())
	result := lenient.ValidateToolParameters("mystery", map[string]interface{}{"a": 1})
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, errors.CodeToolNotFound, result.Warnings[0].Code)

	strict := testValidator(t, Options{StrictMode: true})
	result = strict.ValidateToolParameters("mystery", nil)
	assert.False(t, result.Valid)
	assert.Equal(t, errors.CodeToolNotFound, result.FirstError().Code)
}

func TestValidateToolParameters_EmptyToolName(t *testing.T) {
	result := testValidator(t, DefaultOptions()).ValidateToolParameters("", nil)
	require.False(t, result.Valid)
	assert.Equal(t, errors.CodeMissingParameter, result.FirstError().Code)
	assert.Equal(t, "tool", result.FirstError().Field)
}

func TestValidateToolParameters_Limits(t *testing.T) {
	params := map[string]interface{}{"port": "x", "extra": 1}

	all := testValidator(t, DefaultOptions()).ValidateToolParameters("build_image", params)
	assert.GreaterOrEqual(t, len(all.Errors), 3)
	assert.False(t, all.Truncated)

	failFast := testValidator(t, Options{FailFast: true}).ValidateToolParameters("build_image", params)
	assert.Len(t, failFast.Errors, 1)
	assert.True(t, failFast.Truncated)

	capped := testValidator(t, Options{MaxErrors: 2}).ValidateToolParameters("build_image", params)
	assert.Len(t, capped.Errors, 2)
	assert.True(t, capped.Truncated)
}

func TestValidationResult_Err(t *testing.T) {
	result := testValidator(t, DefaultOptions()).ValidateToolParameters("build_image", map[string]interface{}{})
	err := result.Err()
	require.Error(t, err)

	assert.True(t, stderrors.Is(err, errors.ErrValidationFailed))
	assert.Equal(t, errors.CodeValidationFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "image")
	assert.Equal(t, errors.RPCInvalidParams, errors.JSONRPCCode(err))
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult("a", 0)
	b := NewValidationResult("b", 0)
	b.AddError(NewValidationError(errors.CodeInvalidParameter, "bad", SeverityMedium))
	b.AddWarning(NewValidationError(errors.CodeMethodNotFound, "odd", SeverityLow))

	a.Merge(b)
	a.Merge(nil)

	assert.False(t, a.Valid)
	assert.Len(t, a.Errors, 1)
	assert.Len(t, a.Warnings, 1)
	assert.Equal(t, "invalid: 1 errors, 1 warnings", a.String())
	assert.Equal(t, "valid (0 warnings)", NewValidationResult("c", 0).String())
}

func TestValidationError_Error(t *testing.T) {
	withField := NewValidationError(errors.CodeTypeMismatch, "expected integer", SeverityMedium).WithField("port")
	assert.Equal(t, "[medium] Field 'port': expected integer", withField.Error())
	assert.Equal(t, "[high] boom", NewValidationError(errors.CodeInternalError, "boom", SeverityHigh).Error())
}

func TestDefaultValidator(t *testing.T) {
	previousRegistry := schemas.SetDefaultRegistry(testRegistry(t))
	t.Cleanup(func() { schemas.SetDefaultRegistry(previousRegistry) })

	result := ValidateToolParameters("build_image", map[string]interface{}{"image": "nginx"})
	assert.True(t, result.Valid)

	strict := NewValidator(nil, Options{StrictMode: true}, zerolog.Nop())
	previous := SetDefault(strict)
	t.Cleanup(func() { SetDefault(previous) })

	assert.Same(t, strict, Default())
	result = ValidateRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"custom/thing"}`))
	assert.False(t, result.Valid)
	assert.Equal(t, errors.CodeMethodNotFound, result.FirstError().Code)
}
