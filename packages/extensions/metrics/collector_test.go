package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector("test")

	c.Record("GET", "/a", 200, 10*time.Millisecond, nil)
	c.Record("GET", "/a", 200, 20*time.Millisecond, nil)
	c.Record("GET", "/a", 500, 30*time.Millisecond, errs.Request(500, "500 Internal Server Error", nil))
	c.Record("POST", "/b", 0, 40*time.Millisecond, errs.Timeout(40*time.Millisecond, errors.New("deadline")))

	s := c.Summary()
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(2), s.SuccessCount)
	assert.Equal(t, int64(2), s.ErrorCount)
	assert.Equal(t, int64(1), s.TimeoutCount)
	assert.InDelta(t, 0.5, s.ErrorRate, 0.0001)
	assert.InDelta(t, float64(10*time.Millisecond), float64(s.Min), float64(100*time.Microsecond))
	assert.InDelta(t, float64(40*time.Millisecond), float64(s.Max), float64(100*time.Microsecond))
	assert.LessOrEqual(t, s.P50, s.P95)

	require.Contains(t, s.Endpoints, "GET /a")
	assert.Equal(t, int64(3), s.Endpoints["GET /a"].Total)
	assert.Equal(t, int64(1), s.Endpoints["GET /a"].Errors)
	assert.Equal(t, int64(1), s.Endpoints["POST /b"].Total)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "200", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "500", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "none", "timeout")))
}

func TestCollector_Exposition(t *testing.T) {
	c := NewCollector("")
	c.Record("GET", "/", 204, time.Millisecond, nil)

	expected := `
# HELP hookline_requests_total Total HTTP calls by method, status code and outcome
# TYPE hookline_requests_total counter
hookline_requests_total{code="204",method="GET",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "hookline_requests_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(c.latency)+testutil.CollectAndCount(c.requests))
}

func TestCollector_Extension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewCollector("ext")
	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	client, err := pipeline.New(cfg, pipeline.WithExtensions(c.Extension()))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/ok")
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "/fail")
	require.Error(t, err)

	s := c.Summary()
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.ErrorCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "502", "error")))
}
