package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	hlhttp "github.com/abdul-hamid-achik/hookline/packages/http"
)

func jsonResponse(body string) *hlhttp.Response {
	return &hlhttp.Response{
		StatusCode: 201,
		Headers:    headers.Set{"Content-Type": {"application/json"}, "Location": {"/users/7"}},
		Body:       []byte(body),
	}
}

func TestExtractor(t *testing.T) {
	resp := jsonResponse(`{"data": {"token": "abc", "ids": [1, 2]}}`)
	e := NewExtractor(resp)

	tests := []struct {
		name  string
		rule  Rule
		want  any
		found bool
	}{
		{"body path", Rule{Source: SourceBody, Path: "data.token"}, "abc", true},
		{"array index", Rule{Source: SourceBody, Path: "data.ids.1"}, float64(2), true},
		{"missing path", Rule{Source: SourceBody, Path: "data.nope"}, nil, false},
		{"whole body", Rule{Source: SourceBody}, map[string]any{"data": map[string]any{"token": "abc", "ids": []any{float64(1), float64(2)}}}, true},
		{"header", Rule{Source: SourceHeader, Path: "location"}, "/users/7", true},
		{"missing header", Rule{Source: SourceHeader, Path: "X-None"}, nil, false},
		{"status", Rule{Source: SourceStatus}, 201, true},
		{"unknown source", Rule{Source: "cookie"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Extract(tt.rule)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_TextBody(t *testing.T) {
	resp := &hlhttp.Response{Headers: headers.Set{"Content-Type": {"text/plain"}}, Body: []byte("pong")}
	got, ok := NewExtractor(resp).Extract(Rule{Source: SourceBody})
	assert.True(t, ok)
	assert.Equal(t, "pong", got)

	_, ok = NewExtractor(resp).Extract(Rule{Source: SourceBody, Path: "x"})
	assert.False(t, ok)
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig([]config.CaptureRule{
		{Name: "token", Path: "data.token"},
		{Name: "etag", Header: "ETag"},
	})
	assert.Equal(t, []Rule{
		{Name: "token", Source: SourceBody, Path: "data.token"},
		{Name: "etag", Source: SourceHeader, Path: "ETag"},
	}, rules)
}

func TestCapture_SharesValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"data": {"token": "abc"}}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := pipeline.New(cfg, pipeline.WithExtensions(New(
		Rule{Name: "token", Path: "data.token"},
		Rule{Name: "etag", Source: SourceHeader, Path: "ETag"},
		Rule{Name: "missing", Path: "data.none"},
	)))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/login")
	require.NoError(t, err)

	shared := client.SharedState()
	assert.Equal(t, "abc", shared.String("token"))
	assert.Equal(t, `"v1"`, shared.String("etag"))
	_, ok := shared.Get("missing")
	assert.False(t, ok)

	captured, _ := client.Registry().Context(Name).ExtensionState().Get("captured")
	assert.Equal(t, []any{"token", "etag"}, captured)
}
