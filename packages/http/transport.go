package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// ErrAborted is wrapped by Send when the request context ends before a
// response arrives.
var ErrAborted = errors.New("request aborted")

// Transport sends a finalized request. Implementations must honor ctx and
// wrap ErrAborted when ctx ends the call.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport is the net/http backed Transport.
type HTTPTransport struct {
	httpClient     *http.Client
	roundTripper   http.RoundTripper
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
}

type TransportOption func(*HTTPTransport)

func NewTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
	}

	for _, opt := range opts {
		opt(t)
	}

	rt := t.roundTripper
	if rt == nil {
		transport := &http.Transport{
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}

		// Configure TLS verification
		if !t.validateSSL {
			transport.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}

		// Configure proxy if specified
		if t.proxyURL != "" {
			proxyURL, err := neturl.Parse(t.proxyURL)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
		rt = transport
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !t.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= t.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	// No client-level timeout: the caller's context owns the deadline.
	t.httpClient = &http.Client{
		Transport:     rt,
		CheckRedirect: redirectPolicy,
	}

	return t
}

func WithFollowRedirects(follow bool) TransportOption {
	return func(t *HTTPTransport) {
		t.followRedirect = follow
	}
}

func WithMaxRedirects(max int) TransportOption {
	return func(t *HTTPTransport) {
		t.maxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) TransportOption {
	return func(t *HTTPTransport) {
		t.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) TransportOption {
	return func(t *HTTPTransport) {
		t.proxyURL = proxyURL
	}
}

// WithRoundTripper replaces the pooled net/http transport, e.g. with a cassette.
// TLS and proxy options are ignored when a round tripper is supplied.
func WithRoundTripper(rt http.RoundTripper) TransportOption {
	return func(t *HTTPTransport) {
		t.roundTripper = rt
	}
}

// Send performs req. The request timeout is not applied here; the caller's
// context carries the deadline.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, classify(ctx, err)
	}

	respHeaders := make(headers.Set, len(httpResp.Header))
	for k, v := range httpResp.Header {
		respHeaders[k] = append([]string(nil), v...)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    respHeaders,
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	}
	return fmt.Errorf("sending request: %w", err)
}
