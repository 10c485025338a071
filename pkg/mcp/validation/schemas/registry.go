package schemas

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Registry is a concurrency-safe set of tool schemas keyed by name
type Registry struct {
	mu        sync.RWMutex
	schemas   map[string]*ToolSchema
	store     Store
	overwrite bool
	logger    zerolog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithStore persists every registration to store
func WithStore(store Store) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithOverwrite lets Register replace an existing schema instead of failing
func WithOverwrite(overwrite bool) Option {
	return func(r *Registry) {
		r.overwrite = overwrite
	}
}

// WithLogger sets the registry logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With().Str("component", "schema_registry").Logger()
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		schemas: make(map[string]*ToolSchema),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a schema. Duplicate names fail unless the registry allows overwrites.
func (r *Registry) Register(schema *ToolSchema) error {
	return r.RegisterContext(context.Background(), schema)
}

// RegisterContext is Register with a context for the store write
func (r *Registry) RegisterContext(ctx context.Context, schema *ToolSchema) error {
	return r.put(ctx, schema, r.overwrite, true)
}

// Replace registers schema, replacing any schema with the same name
func (r *Registry) Replace(ctx context.Context, schema *ToolSchema) error {
	return r.put(ctx, schema, true, true)
}

// Preload adds schemas in memory only, replacing schemas with the same name.
// The store is never written.
func (r *Registry) Preload(list ...*ToolSchema) error {
	for _, schema := range list {
		if err := r.put(context.Background(), schema, true, false); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) put(ctx context.Context, schema *ToolSchema, overwrite, persist bool) error {
	if schema == nil {
		return errors.MissingParameterError("schema")
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.schemas[schema.Name]
	if exists && !overwrite {
		return errors.ToolAlreadyRegisteredError(schema.Name)
	}

	if schema.RegisteredAt.IsZero() {
		schema.RegisteredAt = time.Now().UTC()
	}
	r.schemas[schema.Name] = schema

	if persist && r.store != nil {
		if err := r.store.Save(ctx, schema); err != nil {
			if exists {
				r.schemas[schema.Name] = previous
			} else {
				delete(r.schemas, schema.Name)
			}
			return errors.Wrapf(err, "schemas", "failed to persist schema %s", schema.Name)
		}
	}

	r.logger.Debug().
		Str("tool", schema.Name).
		Bool("replaced", exists).
		Msg("Registered tool schema")
	return nil
}

// Unregister removes a schema by name
func (r *Registry) Unregister(name string) error {
	return r.UnregisterContext(context.Background(), name)
}

// UnregisterContext is Unregister with a context for the store delete
func (r *Registry) UnregisterContext(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schemas[name]; !ok {
		return errors.ToolNotFoundError(name)
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil {
			return errors.Wrapf(err, "schemas", "failed to delete schema %s", name)
		}
	}
	delete(r.schemas, name)
	return nil
}

// Get returns the schema registered under name
func (r *Registry) Get(name string) (*ToolSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, ok := r.schemas[name]
	if !ok {
		return nil, errors.ToolNotFoundError(name)
	}
	return schema, nil
}

// List returns all schemas sorted by name
func (r *Registry) List() []*ToolSchema {
	r.mu.RLock()
	out := make([]*ToolSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted schema names
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Load fills the registry from its store. Entries that do not compile are skipped.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}

	stored, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "schemas", "failed to load schemas")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for _, schema := range stored {
		if err := schema.Validate(); err != nil {
			r.logger.Warn().Err(err).Str("tool", schema.Name).Msg("Skipping stored schema")
			continue
		}
		r.schemas[schema.Name] = schema
		loaded++
	}

	r.logger.Info().Int("loaded", loaded).Int("stored", len(stored)).Msg("Loaded tool schemas from store")
	return loaded, nil
}

// Close closes the backing store, if any
func (r *Registry) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
