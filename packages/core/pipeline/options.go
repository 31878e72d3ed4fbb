package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	"github.com/abdul-hamid-achik/hookline/packages/http"
)

// Option configures a Client.
type Option func(*Client)

// WithExtensions registers exts on the client.
func WithExtensions(exts ...extension.Extension) Option {
	return func(c *Client) {
		c.pending = append(c.pending, exts...)
	}
}

// WithTransport replaces the default net/http transport.
func WithTransport(t http.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithCodec(codec http.Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

func WithURLBuilder(b http.URLBuilder) Option {
	return func(c *Client) {
		c.urls = b
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMerger replaces the merger built from the configured header strategies.
func WithMerger(m headers.Merger) Option {
	return func(c *Client) {
		c.merger = &m
	}
}

// WithSharedState seeds the client with an existing shared state.
func WithSharedState(s *state.Shared) Option {
	return func(c *Client) {
		c.shared = s
	}
}

// RequestOption configures a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers        headers.Set
	params         map[string]string
	body           any
	timeout        *time.Duration
	validateStatus func(int) bool
}

// WithHeader adds a call-level header.
func WithHeader(name, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Add(name, value)
	}
}

func WithHeaders(h map[string]string) RequestOption {
	return func(o *requestOptions) {
		for k, v := range h {
			o.headers.Add(k, v)
		}
	}
}

// WithBody sets the request body. Strings and byte slices are sent as is,
// url.Values as a form and anything else as JSON.
func WithBody(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

func WithParam(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.params[key] = value
	}
}

func WithParams(params map[string]string) RequestOption {
	return func(o *requestOptions) {
		for k, v := range params {
			o.params[k] = v
		}
	}
}

// WithTimeout overrides the configured timeout for one call. Zero disables it.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = &d
	}
}

// WithValidateStatus replaces the 2xx success check for one call.
func WithValidateStatus(fn func(status int) bool) RequestOption {
	return func(o *requestOptions) {
		o.validateStatus = fn
	}
}
