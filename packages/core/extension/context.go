package extension

import (
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

// Context is an extension's handle on its own state and on the shared state
// of the client. One Context exists per registered extension.
type Context struct {
	name   string
	store  *state.Store
	shared *state.Shared
	logger zerolog.Logger
}

// NewContext creates the context for ext. State changes are reported to
// ext's onStateChange handler when it has one.
func NewContext(ext Extension, shared *state.Shared, logger zerolog.Logger) *Context {
	if shared == nil {
		shared = state.NewShared()
	}
	ec := &Context{
		name:   ext.Name,
		shared: shared,
		logger: logger.With().Str("extension", ext.Name).Logger(),
	}

	var onChange state.ChangeFunc
	if handler := ext.Hooks.OnStateChange; handler != nil {
		onChange = func(prev, next state.Snapshot) error {
			return handler(StateChange{Previous: prev, Next: next}, ec)
		}
	}
	ec.store = state.NewStore(ext.Name, ext.InitialState, onChange)
	return ec
}

// Name returns the owning extension's name.
func (c *Context) Name() string {
	return c.name
}

// ExtensionState returns the last committed private state.
func (c *Context) ExtensionState() state.Snapshot {
	return c.store.Snapshot()
}

// SetState commits modify's result as the new private state.
func (c *Context) SetState(modify state.Modifier) error {
	return c.store.SetState(modify)
}

// SharedState returns a read-only copy of the shared state.
func (c *Context) SharedState() state.Snapshot {
	return c.shared.Snapshot()
}

func (c *Context) GetSharedState(key string) (any, bool) {
	return c.shared.Get(key)
}

func (c *Context) SetSharedState(key string, value any) {
	c.shared.Set(key, value)
}

func (c *Context) DeleteSharedState(key string) {
	c.shared.Delete(key)
}

// Logger returns a logger tagged with the extension name.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}
