package schemas

import "sync"

var (
	defaultMu       sync.RWMutex
	defaultRegistry = NewRegistry()
)

// DefaultRegistry returns the process-wide registry used by the package functions
func DefaultRegistry() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRegistry
}

// SetDefaultRegistry swaps the process-wide registry and returns the previous one
func SetDefaultRegistry(r *Registry) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	previous := defaultRegistry
	defaultRegistry = r
	return previous
}

// RegisterToolSchema registers schema in the default registry
func RegisterToolSchema(schema *ToolSchema) error {
	return DefaultRegistry().Register(schema)
}

// GetToolSchema looks name up in the default registry
func GetToolSchema(name string) (*ToolSchema, error) {
	return DefaultRegistry().Get(name)
}

// ListToolSchemas lists the default registry sorted by name
func ListToolSchemas() []*ToolSchema {
	return DefaultRegistry().List()
}
