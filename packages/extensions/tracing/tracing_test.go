package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
)

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func setup(t *testing.T, status int) (*pipeline.Client, *tracetest.SpanRecorder, *atomic.Value) {
	t.Helper()
	var traceparent atomic.Value
	traceparent.Store("")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("Traceparent"))
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := pipeline.New(cfg, pipeline.WithExtensions(New(WithTracerProvider(tp))))
	require.NoError(t, err)
	return client, recorder, &traceparent
}

func TestTracing_SuccessSpan(t *testing.T) {
	client, recorder, traceparent := setup(t, http.StatusOK)

	_, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)

	a := attrs(span)
	assert.Equal(t, "GET", a["http.request.method"].AsString())
	assert.Equal(t, "/orders", a["url.path"].AsString())
	assert.Equal(t, int64(200), a["http.response.status_code"].AsInt64())
	assert.Contains(t, a["url.full"].AsString(), "/orders")

	// The server received the span's trace context.
	got := traceparent.Load().(string)
	require.NotEmpty(t, got)
	assert.Contains(t, got, span.SpanContext().TraceID().String())
}

func TestTracing_ErrorSpan(t *testing.T) {
	client, recorder, _ := setup(t, http.StatusInternalServerError)

	_, err := client.Get(context.Background(), "/orders")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "request", attrs(span)["error.type"].AsString())
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestFromConfig_Stdout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	var buf bytes.Buffer
	ext, err := FromConfig(&config.TracingConfig{ServiceName: "orders-cli", Stdout: true}, &buf)
	require.NoError(t, err)
	require.NotNil(t, ext.Close)

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := pipeline.New(cfg, pipeline.WithExtensions(ext))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.Contains(t, buf.String(), `"Name": "HTTP GET"`)
	assert.Contains(t, buf.String(), "orders-cli")
}
