// Package requestid tags every outgoing request with a correlation id.
package requestid

import (
	"context"

	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

const (
	Name     = "requestid"
	Priority = 70

	// DefaultHeader is the header the id is sent in.
	DefaultHeader = "X-Request-ID"
)

// Option configures the extension.
type Option func(*options)

type options struct {
	header   string
	generate func(call extension.Call) string
}

// WithHeader sends the id in name instead of DefaultHeader.
func WithHeader(name string) Option {
	return func(o *options) {
		o.header = name
	}
}

// WithGenerator derives the id from the call. The default is the call id.
func WithGenerator(fn func(call extension.Call) string) Option {
	return func(o *options) {
		o.generate = fn
	}
}

// New returns the requestid extension. An id set by the caller is kept.
func New(opts ...Option) extension.Extension {
	o := &options{
		header:   DefaultHeader,
		generate: func(call extension.Call) string { return call.ID },
	}
	for _, opt := range opts {
		opt(o)
	}

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			BeforeRequest: func(_ context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				if args.Config.Headers == nil {
					args.Config.Headers = make(headers.Set)
				}
				id := args.Config.Headers.Get(o.header)
				if id == "" {
					id = o.generate(args.Call)
					args.Config.Headers.Put(o.header, id)
				}
				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					return prev.With("last", id), nil
				})
			},
		},
	}
}
