// Package accesslog writes a structured log line for every lifecycle phase
// of a call.
package accesslog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
)

const (
	Name     = "accesslog"
	Priority = -100
)

// Option configures the extension.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
}

// WithLogger logs to logger instead of the extension context logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// New returns the accesslog extension. Request and completion lines are
// logged at info, intermediate phases at debug and failures at warn.
func New(opts ...Option) extension.Extension {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	loggerFor := func(ec *extension.Context, call extension.Call) zerolog.Logger {
		base := ec.Logger()
		if o.logger != nil {
			base = o.logger
		}
		return base.With().Str("call", call.ID).Logger()
	}

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			BeforeRequest: func(_ context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Debug().
					Str("method", args.Method).
					Str("endpoint", args.Endpoint).
					Int("headers", len(args.Config.Headers)).
					Msg("request prepared")
				return nil
			},
			OnRequest: func(_ context.Context, args extension.OnRequestArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Info().
					Str("method", args.Request.Method).
					Str("url", args.Request.URL).
					Int("body_bytes", len(args.Request.Body)).
					Msg("request sent")
				return nil
			},
			BeforeResponse: func(_ context.Context, args extension.BeforeResponseArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Debug().
					Int("status", args.Response.StatusCode).
					Int("body_bytes", len(args.Response.Body)).
					Dur("duration", args.Duration).
					Msg("response received")
				return nil
			},
			OnResponse: func(_ context.Context, args extension.OnResponseArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Debug().
					Str("content_type", args.Response.ContentType()).
					Msg("response decoded")
				return nil
			},
			AfterSuccess: func(_ context.Context, args extension.AfterSuccessArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Debug().Dur("duration", args.Duration).Msg("call succeeded")
				return nil
			},
			OnError: func(_ context.Context, err error, ec *extension.Context, meta *extension.ErrorMeta) error {
				log := loggerFor(ec, meta.Call)
				if meta.Scope == extension.ScopeHandler {
					log.Debug().Err(err).Str("hook", string(meta.Hook)).Msg("access log handler failed")
					return nil
				}
				log.Warn().
					Err(err).
					Str("kind", string(errs.KindOf(err))).
					Str("hook", string(meta.Hook)).
					Str("method", meta.Method).
					Str("endpoint", meta.Endpoint).
					Msg("call failed")
				return nil
			},
			AfterRequest: func(_ context.Context, args extension.AfterRequestArgs, ec *extension.Context) error {
				log := loggerFor(ec, args.Call)
				log.Info().
					Str("method", args.Method).
					Str("endpoint", args.Endpoint).
					Int("status", args.Status).
					Bool("success", args.Success).
					Dur("duration", args.Duration).
					Msg("request completed")
				return nil
			},
		},
	}
}
