// Package tracing records one OpenTelemetry client span per call and
// propagates the W3C trace context to the server.
package tracing

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

const (
	Name     = "tracing"
	Priority = 60

	instrumentationName = "github.com/abdul-hamid-achik/hookline/packages/extensions/tracing"
)

// Option configures the extension.
type Option func(*options)

type options struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.provider = tp
	}
}

// WithPropagator replaces the W3C trace context propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.propagator = p
	}
}

// WithShutdown runs fn when the client is closed.
func WithShutdown(fn func(context.Context) error) Option {
	return func(o *options) {
		o.shutdown = fn
	}
}

// NewProvider creates an SDK provider for serviceName. Spans are written to w
// as JSON when w is not nil.
func NewProvider(serviceName string, w io.Writer) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if w != nil {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// FromConfig builds the extension with its own provider. Spans go to w when
// cfg.Stdout is set.
func FromConfig(cfg *config.TracingConfig, w io.Writer) (extension.Extension, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "hookline"
	}
	if !cfg.Stdout {
		w = nil
	}
	tp, err := NewProvider(name, w)
	if err != nil {
		return extension.Extension{}, err
	}
	return New(WithTracerProvider(tp), WithShutdown(tp.Shutdown)), nil
}

// New returns the tracing extension.
func New(opts ...Option) extension.Extension {
	o := &options{
		provider:   otel.GetTracerProvider(),
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(o)
	}

	tracer := o.provider.Tracer(instrumentationName)
	var spans sync.Map // call id -> trace.Span

	spanFor := func(call extension.Call) (trace.Span, bool) {
		v, ok := spans.Load(call.ID)
		if !ok {
			return nil, false
		}
		return v.(trace.Span), true
	}

	ext := extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			BeforeRequest: func(ctx context.Context, args extension.BeforeRequestArgs, _ *extension.Context) error {
				spanCtx, span := tracer.Start(ctx, "HTTP "+args.Method,
					trace.WithSpanKind(trace.SpanKindClient),
					trace.WithTimestamp(args.Call.Started),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(args.Method),
						semconv.URLPath(args.Endpoint),
						attribute.String("hookline.call_id", args.Call.ID),
					),
				)
				spans.Store(args.Call.ID, span)

				if args.Config.Headers == nil {
					args.Config.Headers = make(headers.Set)
				}
				o.propagator.Inject(spanCtx, propagation.HeaderCarrier(args.Config.Headers))
				return nil
			},
			OnRequest: func(_ context.Context, args extension.OnRequestArgs, _ *extension.Context) error {
				if span, ok := spanFor(args.Call); ok {
					span.SetAttributes(semconv.URLFull(args.Request.URL))
				}
				return nil
			},
			BeforeResponse: func(_ context.Context, args extension.BeforeResponseArgs, _ *extension.Context) error {
				if span, ok := spanFor(args.Call); ok {
					span.SetAttributes(
						semconv.HTTPResponseStatusCode(args.Response.StatusCode),
						attribute.Int("http.response.body.size", len(args.Response.Body)),
					)
				}
				return nil
			},
			OnError: func(_ context.Context, err error, _ *extension.Context, meta *extension.ErrorMeta) error {
				if meta.Scope != extension.ScopeCall {
					return nil
				}
				if span, ok := spanFor(meta.Call); ok {
					span.RecordError(err, trace.WithAttributes(attribute.String("hookline.hook", string(meta.Hook))))
					span.SetStatus(codes.Error, err.Error())
					span.SetAttributes(attribute.String("error.type", string(errs.KindOf(err))))
				}
				return nil
			},
			AfterRequest: func(_ context.Context, args extension.AfterRequestArgs, _ *extension.Context) error {
				v, ok := spans.LoadAndDelete(args.Call.ID)
				if !ok {
					return nil
				}
				span := v.(trace.Span)
				if args.Success {
					span.SetStatus(codes.Ok, "")
				}
				span.End()
				return nil
			},
		},
	}
	if o.shutdown != nil {
		ext.Close = func() error {
			return o.shutdown(context.Background())
		}
	}
	return ext
}
