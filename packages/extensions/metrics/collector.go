// Package metrics counts calls and records their latency, both as Prometheus
// collectors and in an HDR histogram for exact percentiles.
package metrics

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
)

const (
	Name     = "metrics"
	Priority = -50

	DefaultNamespace = "hookline"

	// Histogram range: 1us to 60s, 3 significant digits.
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Collector collects and aggregates call metrics
type Collector struct {
	mu sync.Mutex

	// Counters
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	// Per-endpoint metrics
	endpoints map[string]*endpointMetrics

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type endpointMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

// NewCollector creates a collector registering its Prometheus metrics under
// namespace in a private registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		endpoints: make(map[string]*endpointMetrics),
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total HTTP calls by method, status code and outcome",
			},
			[]string{"method", "code", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP call duration including all extension phases",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	c.registry.MustRegister(c.requests, c.latency)
	return c
}

// Registry exposes the Prometheus registry, e.g. for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record records one finished call.
func (c *Collector) Record(method, endpoint string, status int, duration time.Duration, err error) {
	c.totalRequests.Add(1)

	outcome := "success"
	switch {
	case err == nil:
		c.successRequests.Add(1)
	case errs.IsKind(err, errs.KindTimeout):
		c.timeoutRequests.Add(1)
		c.errorRequests.Add(1)
		outcome = "timeout"
	default:
		c.errorRequests.Add(1)
		outcome = "error"
	}

	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.requests.WithLabelValues(method, code, outcome).Inc()
	c.latency.WithLabelValues(method).Observe(duration.Seconds())

	latencyUs := clampLatency(duration)

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.histogram.RecordValue(latencyUs)

	key := method + " " + endpoint
	em, ok := c.endpoints[key]
	if !ok {
		em = &endpointMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
		c.endpoints[key] = em
	}
	em.total++
	if err != nil {
		em.errors++
	}
	_ = em.histogram.RecordValue(latencyUs)
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

// Summary is a point-in-time view of the collected metrics
type Summary struct {
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	ErrorRate     float64

	// Latency percentiles
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	// Per-endpoint breakdown keyed by "METHOD endpoint"
	Endpoints map[string]*EndpointSummary
}

// EndpointSummary holds the summary of one method and endpoint
type EndpointSummary struct {
	Total  int64
	Errors int64
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Mean   time.Duration
}

func usToDuration(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// Summary returns the metrics summary
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.totalRequests.Load()
	errorCount := c.errorRequests.Load()

	errorRate := float64(0)
	if total > 0 {
		errorRate = float64(errorCount) / float64(total)
	}

	summary := &Summary{
		TotalRequests: total,
		SuccessCount:  c.successRequests.Load(),
		ErrorCount:    errorCount,
		TimeoutCount:  c.timeoutRequests.Load(),
		ErrorRate:     errorRate,
		P50:           usToDuration(c.histogram.ValueAtQuantile(50)),
		P95:           usToDuration(c.histogram.ValueAtQuantile(95)),
		P99:           usToDuration(c.histogram.ValueAtQuantile(99)),
		Min:           usToDuration(c.histogram.Min()),
		Max:           usToDuration(c.histogram.Max()),
		Mean:          time.Duration(c.histogram.Mean()) * time.Microsecond,
		Endpoints:     make(map[string]*EndpointSummary, len(c.endpoints)),
	}

	for key, em := range c.endpoints {
		summary.Endpoints[key] = &EndpointSummary{
			Total:  em.total,
			Errors: em.errors,
			P50:    usToDuration(em.histogram.ValueAtQuantile(50)),
			P95:    usToDuration(em.histogram.ValueAtQuantile(95)),
			P99:    usToDuration(em.histogram.ValueAtQuantile(99)),
			Mean:   time.Duration(em.histogram.Mean()) * time.Microsecond,
		}
	}

	return summary
}

// Extension returns the extension feeding the collector from afterRequest.
func (c *Collector) Extension() extension.Extension {
	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Hooks: extension.Hooks{
			AfterRequest: func(_ context.Context, args extension.AfterRequestArgs, _ *extension.Context) error {
				c.Record(args.Method, args.Endpoint, args.Status, args.Duration, args.Err)
				return nil
			},
		},
	}
}
