package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	"github.com/abdul-hamid-achik/hookline/packages/http"
	"github.com/abdul-hamid-achik/hookline/packages/logging"
)

// Client sends requests through the registered extensions.
type Client struct {
	cfg       *config.Config
	registry  *extension.Registry
	scheduler *extension.Scheduler
	transport http.Transport
	codec     http.Codec
	urls      http.URLBuilder
	merger    *headers.Merger
	shared    *state.Shared
	logger    zerolog.Logger

	pending []extension.Extension
}

// New creates a client from cfg, registers the extensions given as options
// and runs their init hooks. A nil cfg uses config.DefaultConfig.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	return NewWithContext(context.Background(), cfg, opts...)
}

// NewWithContext is New with a context for the init hooks.
func NewWithContext(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		codec:  http.DefaultCodec{},
		urls:   http.DefaultURLBuilder{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, "pipeline")

	if c.transport == nil {
		c.transport = http.NewTransport(
			http.WithFollowRedirects(cfg.GetFollowRedirects()),
			http.WithMaxRedirects(cfg.MaxRedirects),
			http.WithValidateSSL(cfg.GetValidateSSL()),
			http.WithProxy(cfg.Proxy),
		)
	}
	if c.merger == nil {
		m := headers.NewMerger(cfg.Strategies())
		c.merger = &m
	}

	registry := extension.NewRegistry(
		extension.WithSharedState(c.shared),
		extension.WithRegistryLogger(c.logger),
	)
	if err := registry.Register(c.pending...); err != nil {
		return nil, err
	}
	c.pending = nil

	if err := c.attach(ctx, registry); err != nil {
		return nil, err
	}
	return c, nil
}

// attach installs registry and runs its init hooks.
func (c *Client) attach(ctx context.Context, registry *extension.Registry) error {
	c.registry = registry
	c.shared = registry.Shared()
	c.scheduler = extension.NewScheduler(registry, extension.WithSchedulerLogger(c.logger))
	return c.scheduler.Initialize(ctx, c.cfg)
}

// Extend returns a new initialized client with exts added to this client's
// extensions. Transport, codec and shared state are shared with c. Init
// hooks run again for every extension of the new client.
func (c *Client) Extend(exts ...extension.Extension) (*Client, error) {
	registry, err := c.registry.Extend(exts...)
	if err != nil {
		return nil, err
	}

	next := &Client{
		cfg:       c.cfg,
		transport: c.transport,
		codec:     c.codec,
		urls:      c.urls,
		merger:    c.merger,
		logger:    c.logger,
	}
	if err := next.attach(context.Background(), registry); err != nil {
		return nil, err
	}
	return next, nil
}

// Config returns the client configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

func (c *Client) Registry() *extension.Registry {
	return c.registry
}

// Extensions returns the registered extensions in execution order.
func (c *Client) Extensions() []extension.Extension {
	return c.scheduler.Order()
}

// SharedState returns a copy of the shared state.
func (c *Client) SharedState() state.Snapshot {
	return c.shared.Snapshot()
}

func (c *Client) ClearSharedState() {
	c.shared.Clear()
}

// Close releases the resources held by the extensions.
func (c *Client) Close() error {
	var errList []error
	for _, ext := range c.registry.All() {
		if ext.Close == nil {
			continue
		}
		if err := ext.Close(); err != nil {
			errList = append(errList, fmt.Errorf("closing extension %s: %w", ext.Name, err))
		}
	}
	return errors.Join(errList...)
}

func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "GET", endpoint, opts...)
}

func (c *Client) Head(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "HEAD", endpoint, opts...)
}

func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "DELETE", endpoint, opts...)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "POST", endpoint, append([]RequestOption{WithBody(body)}, opts...)...)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "PUT", endpoint, append([]RequestOption{WithBody(body)}, opts...)...)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, "PATCH", endpoint, append([]RequestOption{WithBody(body)}, opts...)...)
}

// requestConfig builds the per-call configuration: call headers are merged
// over the client headers.
func (c *Client) requestConfig(opts []RequestOption) *extension.RequestConfig {
	o := &requestOptions{
		headers: make(headers.Set),
		params:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	timeout := c.cfg.TimeoutDuration()
	if o.timeout != nil {
		timeout = *o.timeout
	}

	return &extension.RequestConfig{
		BaseURL:        c.cfg.BaseURL,
		Headers:        c.merger.Merge(headers.FromMap(c.cfg.Headers), o.headers),
		Params:         o.params,
		Body:           o.body,
		Timeout:        timeout,
		ValidateStatus: o.validateStatus,
	}
}

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
