package extension

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	"github.com/abdul-hamid-achik/hookline/packages/http"
)

// HookName identifies a lifecycle phase.
type HookName string

const (
	HookInit           HookName = "init"
	HookBeforeRequest  HookName = "beforeRequest"
	HookOnRequest      HookName = "onRequest"
	HookBeforeResponse HookName = "beforeResponse"
	HookOnResponse     HookName = "onResponse"
	HookAfterSuccess   HookName = "afterSuccess"
	HookOnError        HookName = "onError"
	HookAfterRequest   HookName = "afterRequest"
	HookOnStateChange  HookName = "onStateChange"
)

// HookNames lists every hook in lifecycle order.
var HookNames = []HookName{
	HookInit,
	HookBeforeRequest,
	HookOnRequest,
	HookBeforeResponse,
	HookOnResponse,
	HookAfterSuccess,
	HookOnError,
	HookAfterRequest,
	HookOnStateChange,
}

// Valid reports whether h is one of HookNames.
func (h HookName) Valid() bool {
	for _, name := range HookNames {
		if h == name {
			return true
		}
	}
	return false
}

// Call identifies one pipeline invocation across its phases.
type Call struct {
	ID      string
	Started time.Time
}

// NewCall starts a call now with a random id.
func NewCall() Call {
	return Call{ID: uuid.NewString(), Started: time.Now()}
}

// Elapsed returns the wall clock time since the call started.
func (c Call) Elapsed() time.Duration {
	return time.Since(c.Started)
}

// RequestConfig is the mutable per-call configuration handed to
// beforeRequest. The URL and body are finalized from it afterwards.
type RequestConfig struct {
	BaseURL string
	Headers headers.Set
	Params  map[string]string
	Body    any
	Timeout time.Duration

	// ValidateStatus overrides the default 2xx success check.
	ValidateStatus func(status int) bool
}

// Clone copies the headers and params. Body is shared.
func (c *RequestConfig) Clone() *RequestConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Headers = c.Headers.Clone()
	if c.Params != nil {
		clone.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			clone.Params[k] = v
		}
	}
	return &clone
}

// ErrorScope tells apart the two deliveries of onError.
type ErrorScope string

const (
	// ScopeHandler: one of the receiving extension's own handlers failed. Only
	// that extension is notified, with the handler's error.
	ScopeHandler ErrorScope = "handler"
	// ScopeCall: the call failed. Every extension is notified with the error
	// the call returns.
	ScopeCall ErrorScope = "call"
)

// ErrorMeta describes where a failure happened.
type ErrorMeta struct {
	Scope    ErrorScope
	Call     Call
	Hook     HookName
	Method   string
	Endpoint string
	Config   *RequestConfig
	Duration time.Duration
}

// StateChange carries the snapshots around a committed state update.
type StateChange struct {
	Previous state.Snapshot
	Next     state.Snapshot
}

// Args is the argument of one schedulable hook. The hook to run is derived
// from the concrete type. The scheduler accepts the pointer forms too and
// dereferences them before dispatch.
type Args interface {
	Hook() HookName
	args()
}

type InitArgs struct {
	Config *config.Config
}

type BeforeRequestArgs struct {
	Call     Call
	Method   string
	Endpoint string
	Config   *RequestConfig
}

type OnRequestArgs struct {
	Call    Call
	Request *http.Request
}

type BeforeResponseArgs struct {
	Call     Call
	Response *http.Response
	Duration time.Duration
}

type OnResponseArgs struct {
	Call     Call
	Response *http.Response
	Data     any
}

type AfterSuccessArgs struct {
	Call     Call
	Data     any
	Response *http.Response
	Duration time.Duration
}

// ErrorArgs runs the onError hook of every extension.
type ErrorArgs struct {
	Err  error
	Meta *ErrorMeta
}

type AfterRequestArgs struct {
	Call     Call
	Method   string
	Endpoint string
	Config   *RequestConfig
	Duration time.Duration
	Success  bool

	// Status is the response status, 0 when no response arrived.
	Status int
	Err    error
}

func (InitArgs) Hook() HookName           { return HookInit }
func (BeforeRequestArgs) Hook() HookName  { return HookBeforeRequest }
func (OnRequestArgs) Hook() HookName      { return HookOnRequest }
func (BeforeResponseArgs) Hook() HookName { return HookBeforeResponse }
func (OnResponseArgs) Hook() HookName     { return HookOnResponse }
func (AfterSuccessArgs) Hook() HookName   { return HookAfterSuccess }
func (ErrorArgs) Hook() HookName          { return HookOnError }
func (AfterRequestArgs) Hook() HookName   { return HookAfterRequest }

func (InitArgs) args()           {}
func (BeforeRequestArgs) args()  {}
func (OnRequestArgs) args()      {}
func (BeforeResponseArgs) args() {}
func (OnResponseArgs) args()     {}
func (AfterSuccessArgs) args()   {}
func (ErrorArgs) args()          {}
func (AfterRequestArgs) args()   {}

// Hooks holds the optional handlers of an extension. A nil field means the
// extension does not take part in that phase.
type Hooks struct {
	Init           func(ctx context.Context, args InitArgs, ec *Context) error
	BeforeRequest  func(ctx context.Context, args BeforeRequestArgs, ec *Context) error
	OnRequest      func(ctx context.Context, args OnRequestArgs, ec *Context) error
	BeforeResponse func(ctx context.Context, args BeforeResponseArgs, ec *Context) error
	OnResponse     func(ctx context.Context, args OnResponseArgs, ec *Context) error
	AfterSuccess   func(ctx context.Context, args AfterSuccessArgs, ec *Context) error
	OnError        func(ctx context.Context, err error, ec *Context, meta *ErrorMeta) error
	AfterRequest   func(ctx context.Context, args AfterRequestArgs, ec *Context) error
	OnStateChange  func(change StateChange, ec *Context) error
}

// Has reports whether a handler is set for name.
func (h Hooks) Has(name HookName) bool {
	switch name {
	case HookInit:
		return h.Init != nil
	case HookBeforeRequest:
		return h.BeforeRequest != nil
	case HookOnRequest:
		return h.OnRequest != nil
	case HookBeforeResponse:
		return h.BeforeResponse != nil
	case HookOnResponse:
		return h.OnResponse != nil
	case HookAfterSuccess:
		return h.AfterSuccess != nil
	case HookOnError:
		return h.OnError != nil
	case HookAfterRequest:
		return h.AfterRequest != nil
	case HookOnStateChange:
		return h.OnStateChange != nil
	}
	return false
}

// Names lists the hooks that have a handler, in lifecycle order.
func (h Hooks) Names() []HookName {
	var names []HookName
	for _, name := range HookNames {
		if h.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

// call dispatches args to the matching handler. Per-call values are cloned so
// a handler cannot alter what the pipeline holds.
func (h Hooks) call(ctx context.Context, args Args, ec *Context) error {
	switch a := args.(type) {
	case InitArgs:
		if h.Init != nil {
			return h.Init(ctx, a, ec)
		}
	case BeforeRequestArgs:
		// beforeRequest edits Config in place.
		if h.BeforeRequest != nil {
			return h.BeforeRequest(ctx, a, ec)
		}
	case OnRequestArgs:
		if h.OnRequest != nil {
			a.Request = a.Request.Clone()
			return h.OnRequest(ctx, a, ec)
		}
	case BeforeResponseArgs:
		if h.BeforeResponse != nil {
			a.Response = a.Response.Clone()
			return h.BeforeResponse(ctx, a, ec)
		}
	case OnResponseArgs:
		if h.OnResponse != nil {
			a.Response = a.Response.Clone()
			return h.OnResponse(ctx, a, ec)
		}
	case AfterSuccessArgs:
		if h.AfterSuccess != nil {
			a.Response = a.Response.Clone()
			return h.AfterSuccess(ctx, a, ec)
		}
	case ErrorArgs:
		if h.OnError != nil {
			return h.OnError(ctx, a.Err, ec, a.Meta)
		}
	case AfterRequestArgs:
		if h.AfterRequest != nil {
			a.Config = a.Config.Clone()
			return h.AfterRequest(ctx, a, ec)
		}
	default:
		return errs.Validation("unsupported hook arguments %T", args)
	}
	return nil
}

// Extension describes a named bundle of hook handlers.
type Extension struct {
	Name string

	// Priority orders execution; higher runs first.
	Priority int

	// Critical extensions stop the remaining handlers of a hook when they fail.
	Critical bool

	InitialState map[string]any
	Hooks        Hooks

	// Close releases resources held by the extension. Optional.
	Close func() error
}

// metaFor builds the ErrorMeta for a handler failure during args' hook.
func metaFor(args Args) *ErrorMeta {
	meta := &ErrorMeta{Scope: ScopeHandler, Hook: args.Hook()}
	switch a := args.(type) {
	case BeforeRequestArgs:
		meta.Call, meta.Method, meta.Endpoint, meta.Config = a.Call, a.Method, a.Endpoint, a.Config
	case OnRequestArgs:
		meta.Call = a.Call
		if a.Request != nil {
			meta.Method, meta.Endpoint = a.Request.Method, a.Request.URL
		}
	case BeforeResponseArgs:
		meta.Call, meta.Duration = a.Call, a.Duration
	case OnResponseArgs:
		meta.Call = a.Call
	case AfterSuccessArgs:
		meta.Call, meta.Duration = a.Call, a.Duration
	case AfterRequestArgs:
		meta.Call, meta.Method, meta.Endpoint, meta.Config, meta.Duration = a.Call, a.Method, a.Endpoint, a.Config, a.Duration
	}
	return meta
}
