package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector keeps in-process counters for the JSON summary and mirrors them into a private
// Prometheus registry for scraping.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	conflicts       uint64
	totalDurationMs uint64

	mu          sync.Mutex
	transitions map[string]uint64

	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	transitionC *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		transitions: map[string]uint64{},
		registry:    prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reviewflow",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		transitionC: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewflow",
			Name:      "workflow_transitions_total",
			Help:      "Workflow state changes by subject and resulting state.",
		}, []string{"subject", "state"}),
	}
	c.registry.MustRegister(c.requests, c.durations, c.transitionC)
	return c
}

func (c *Collector) Record(route string, status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
	case status == 409:
		atomic.AddUint64(&c.conflicts, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))

	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.durations.WithLabelValues(route).Observe(duration.Seconds())
}

// Transition counts a workflow state change, e.g. ("assessment", "approved").
func (c *Collector) Transition(subject, state string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transitions[subject+"."+state]++
	c.mu.Unlock()
	c.transitionC.WithLabelValues(subject, state).Inc()
}

// Handler serves the Prometheus text exposition of this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	keys := make([]string, 0, len(c.transitions))
	for key := range c.transitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	transitions := make(map[string]uint64, len(keys))
	for _, key := range keys {
		transitions[key] = c.transitions[key]
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal": atomic.LoadUint64(&c.rateLimited),
		"conflictsTotal":   atomic.LoadUint64(&c.conflicts),
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"transitions":      transitions,
	}
}
