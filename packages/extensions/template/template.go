// Package template expands {{...}} placeholders in outgoing requests.
//
// Placeholders are resolved against the configured variables, then the
// client's shared state, so a value captured from one response can be sent
// with the next call. Environment variables ({{$HOME}}) and functions
// ({{uuid()}}, {{timestamp()}}, {{random(1, 10)}}) are also available.
package template

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

const (
	Name = "template"
	// Runs before auth and signing so they see the final request.
	Priority = 110
)

type options struct {
	variables map[string]string
	strict    bool
	now       func() time.Time
}

type Option func(*options)

// WithVariables sets the variables consulted before shared state.
func WithVariables(vars map[string]string) Option {
	return func(o *options) {
		o.variables = vars
	}
}

// WithStrict fails the call when a placeholder cannot be resolved.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithClock sets the clock used by the time functions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New returns the template extension. It is critical only in strict mode.
func New(opts ...Option) extension.Extension {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	funcs := NewFunctions(o.now)

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Critical: o.strict,
		Hooks: extension.Hooks{
			BeforeRequest: func(_ context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				r := NewResolver(funcs, MapLookup(o.variables), ec.GetSharedState)

				var unresolved []string
				resolve := func(s string) (string, error) {
					out, missing, err := r.Resolve(s)
					unresolved = append(unresolved, missing...)
					return out, err
				}

				if err := expand(args.Config, resolve); err != nil {
					return errs.Wrap(errs.KindValidation, err, "template expansion failed")
				}

				if len(unresolved) > 0 {
					if o.strict {
						return errs.Wrap(errs.KindValidation, &UnresolvedError{Names: unresolved}, "template expansion failed")
					}
					ec.Logger().Warn().
						Str("call", args.Call.ID).
						Strs("unresolved", unresolved).
						Msg("template placeholders left unresolved")
				}

				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					return prev.With("unresolved", len(unresolved)), nil
				})
			},
		},
	}
}

// expand applies resolve to the base URL, header values, params and
// textual bodies of rc in place.
func expand(rc *extension.RequestConfig, resolve func(string) (string, error)) error {
	var errList []error
	apply := func(s string) string {
		out, err := resolve(s)
		if err != nil {
			errList = append(errList, err)
			return s
		}
		return out
	}

	rc.BaseURL = apply(rc.BaseURL)

	if rc.Headers != nil {
		next := make(headers.Set, len(rc.Headers))
		for name, values := range rc.Headers {
			out := make([]string, len(values))
			for i, v := range values {
				out[i] = apply(v)
			}
			next[name] = out
		}
		rc.Headers = next
	}

	for k, v := range rc.Params {
		rc.Params[k] = apply(v)
	}

	switch b := rc.Body.(type) {
	case string:
		rc.Body = apply(b)
	case []byte:
		rc.Body = []byte(apply(string(b)))
	}

	return errors.Join(errList...)
}
