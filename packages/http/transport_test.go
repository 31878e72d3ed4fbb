package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		assert.Equal(t, []string{"a=1", "b=2"}, r.Header.Values("X-Multi"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL+"/test")
	req.Headers["X-Multi"] = []string{"a=1", "b=2"}

	resp, err := NewTransport().Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Equal(t, "hello", resp.JSON("message").String())
}

func TestTransport_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(`{"name": "test"}`))

	resp, err := NewTransport().Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Contains(t, resp.BodyString(), "123")
}

func TestTransport_AbortIsDistinguishable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewTransport().Send(ctx, NewRequest("GET", server.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_NetworkFailureIsNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewTransport().Send(context.Background(), NewRequest("GET", addr))

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAborted))
}

func TestTransport_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	resp, err := NewTransport(WithFollowRedirects(true)).Send(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestTransport_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	resp, err := NewTransport(WithFollowRedirects(false)).Send(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestTransport_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		// Infinite redirect loop
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	resp, err := NewTransport(WithMaxRedirects(3)).Send(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.LessOrEqual(t, redirectCount, 4)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		endpoint string
		params   map[string]string
		expected string
		wantErr  bool
	}{
		{
			name:     "joins slashes",
			base:     "https://api.example.com/v1/",
			endpoint: "/users",
			expected: "https://api.example.com/v1/users",
		},
		{
			name:     "absolute endpoint ignores base",
			base:     "https://api.example.com",
			endpoint: "http://other.example.com/x",
			expected: "http://other.example.com/x",
		},
		{
			name:     "params sorted",
			base:     "https://api.example.com",
			endpoint: "search?q=go",
			params:   map[string]string{"page": "2", "limit": "10"},
			expected: "https://api.example.com/search?limit=10&page=2&q=go",
		},
		{
			name:     "relative without base",
			endpoint: "/users",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultURLBuilder{}.Build(tt.base, tt.endpoint, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: headers.Set{"Content-Type": {tt.contentType}}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}

func TestDefaultCodec_Decode(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    any
	}{
		{"json object", "application/json", `{"a": 1, "b": [true]}`, map[string]any{"a": float64(1), "b": []any{true}}},
		{"json with charset", "application/json; charset=utf-8", `[1,2]`, []any{float64(1), float64(2)}},
		{"text", "text/plain", "hello", "hello"},
		{"xml", "application/xml", "<a/>", "<a/>"},
		{"form", "application/x-www-form-urlencoded", "a=1&b=2", url.Values{"a": {"1"}, "b": {"2"}}},
		{"binary", "application/octet-stream", "\x00\x01", []byte{0, 1}},
		{"empty", "application/json", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Headers: headers.Set{"Content-Type": {tt.contentType}}, Body: []byte(tt.body)}
			data, err := DefaultCodec{}.Decode(resp)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, data)
		})
	}
}

func TestDefaultCodec_InvalidJSON(t *testing.T) {
	resp := &Response{Headers: headers.Set{"Content-Type": {"application/json"}}, Body: []byte(`{"a":`)}

	_, err := DefaultCodec{}.Decode(resp)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindParse))
}

func TestEncodeBody(t *testing.T) {
	data, ct, err := EncodeBody(map[string]any{"name": "test"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
	assert.JSONEq(t, `{"name":"test"}`, string(data))

	data, ct, err = EncodeBody(url.Values{"a": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", ct)
	assert.Equal(t, "a=1", string(data))

	data, ct, err = EncodeBody("raw")
	require.NoError(t, err)
	assert.Empty(t, ct)
	assert.Equal(t, "raw", string(data))

	data, _, err = EncodeBody(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCassette_RecordThenReplay(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("recorded"))
	}))
	path := filepath.Join(t.TempDir(), "interaction")

	recording, err := OpenCassette(path, CassetteRecord, nil)
	require.NoError(t, err)
	resp, err := NewTransport(WithRoundTripper(recording.RoundTripper())).Send(context.Background(), NewRequest("GET", server.URL+"/x"))
	require.NoError(t, err)
	assert.Equal(t, "recorded", resp.BodyString())
	require.NoError(t, recording.Stop())

	target := server.URL + "/x"
	server.Close()

	replaying, err := OpenCassette(path, CassetteReplay, nil)
	require.NoError(t, err)
	defer replaying.Stop()

	resp, err = NewTransport(WithRoundTripper(replaying.RoundTripper())).Send(context.Background(), NewRequest("GET", target))
	require.NoError(t, err)
	assert.Equal(t, "recorded", resp.BodyString())
	assert.Equal(t, 1, hits)
}

func TestParseCassetteMode(t *testing.T) {
	mode, err := ParseCassetteMode("record")
	require.NoError(t, err)
	assert.Equal(t, CassetteRecord, mode)

	_, err = ParseCassetteMode("rewind")
	assert.Error(t, err)
}
