package extension

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

// Registry holds the registered extensions in registration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	exts     map[string]Extension
	contexts map[string]*Context
	shared   *state.Shared
	logger   zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSharedState uses s as the shared state instead of a fresh map.
func WithSharedState(s *state.Shared) RegistryOption {
	return func(r *Registry) {
		r.shared = s
	}
}

func WithRegistryLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		exts:     make(map[string]Extension),
		contexts: make(map[string]*Context),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.shared == nil {
		r.shared = state.NewShared()
	}
	return r
}

// Register adds exts. The whole batch is validated first; on error nothing
// is registered.
func (r *Registry) Register(exts ...Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if err := validate(ext); err != nil {
			return err
		}
		if seen[ext.Name] {
			return errs.DuplicateExtension(ext.Name)
		}
		if _, ok := r.exts[ext.Name]; ok {
			return errs.DuplicateExtension(ext.Name)
		}
		seen[ext.Name] = true
	}

	for _, ext := range exts {
		r.add(ext, nil)
	}
	return nil
}

func validate(ext Extension) error {
	if strings.TrimSpace(ext.Name) == "" {
		return errs.Validation("extension name is required")
	}
	if err := state.CheckMap(ext.InitialState); err != nil {
		return errs.Wrap(errs.KindValidation, err, "extension %q has invalid initial state", ext.Name)
	}
	return nil
}

// add stores ext, reusing ec when given. Callers hold the lock.
func (r *Registry) add(ext Extension, ec *Context) {
	if _, ok := r.exts[ext.Name]; !ok {
		r.order = append(r.order, ext.Name)
	}
	if ec == nil {
		ec = NewContext(ext, r.shared, r.logger)
	}
	r.exts[ext.Name] = ext
	r.contexts[ext.Name] = ec
	r.logger.Debug().
		Str("extension", ext.Name).
		Int("priority", ext.Priority).
		Bool("critical", ext.Critical).
		Msg("extension registered")
}

// Extend returns a new registry holding r's extensions plus more. An entry
// in more replaces the extension of the same name in place and starts with
// fresh state; untouched extensions keep their contexts. Both registries
// share the same shared state.
func (r *Registry) Extend(more ...Extension) (*Registry, error) {
	for _, ext := range more {
		if err := validate(ext); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	next := NewRegistry(WithSharedState(r.shared), WithRegistryLogger(r.logger))

	replaced := make(map[string]Extension, len(more))
	for _, ext := range more {
		replaced[ext.Name] = ext
	}

	for _, name := range r.order {
		if ext, ok := replaced[name]; ok {
			next.add(ext, nil)
			continue
		}
		next.add(r.exts[name], r.contexts[name])
	}
	for _, ext := range more {
		if _, ok := next.exts[ext.Name]; ok {
			continue
		}
		next.add(replaced[ext.Name], nil)
	}
	return next, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.exts[name]
	return ok
}

// Get returns the extension registered as name.
func (r *Registry) Get(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.exts[name]
	return ext, ok
}

// All returns the extensions in registration order.
func (r *Registry) All() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extension, len(r.order))
	for i, name := range r.order {
		out[i] = r.exts[name]
	}
	return out
}

// Context returns the context of name, or nil when name is not registered.
func (r *Registry) Context(name string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[name]
}

// Shared returns the shared state.
func (r *Registry) Shared() *state.Shared {
	return r.shared
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
