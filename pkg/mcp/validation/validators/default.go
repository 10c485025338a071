package validators

import (
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultMu        sync.RWMutex
	defaultValidator = NewValidator(nil, DefaultOptions(), zerolog.Nop())
)

// Default returns the package validator. It uses the default schema registry.
func Default() *Validator {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultValidator
}

// SetDefault swaps the package validator and returns the previous one
func SetDefault(v *Validator) *Validator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	previous := defaultValidator
	defaultValidator = v
	return previous
}

// ValidateToolParameters validates params with the default validator
func ValidateToolParameters(toolName string, params map[string]interface{}) *ValidationResult {
	return Default().ValidateToolParameters(toolName, params)
}

// ValidateRequest validates a request envelope with the default validator
func ValidateRequest(payload []byte) *ValidationResult {
	return Default().ValidateRequest(payload)
}
