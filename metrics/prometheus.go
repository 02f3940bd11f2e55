// Package metrics provides Prometheus instrumentation for the gateway's
// rate limiter and stats recorder.
//
// Wrap any ratelimit.Algorithm to automatically record admission counts,
// countdown latency, and backend errors:
//
//	collector := metrics.NewCollector()
//	algo := ratelimit.NewTokenBucket()
//	wrapped := metrics.Wrap(algo, metrics.TokenBucket, collector)
//
// All metrics are partitioned by algorithm name. Admission counts carry an
// additional "decision" label (admitted / denied).
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/krishna-kudari/apigateway/ratelimit"
)

// Algorithm name constants for the algorithm label.
const (
	FixedWindow   = "fixed_window"
	SlidingWindow = "sliding_window"
	TokenBucket   = "token_bucket"
	LeakyBucket   = "leaky_bucket"
)

// Collector holds Prometheus metric vectors for gateway instrumentation.
type Collector struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	requestsTotal  prometheus.Counter
	cacheHitsTotal prometheus.Counter
}

type collectorConfig struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *collectorConfig) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *collectorConfig) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *collectorConfig) { c.registry = r }
}

// WithBuckets sets custom histogram buckets for countdown latency.
func WithBuckets(b []float64) CollectorOption {
	return func(c *collectorConfig) { c.buckets = b }
}

var defaultBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

// NewCollector creates a Collector and registers its metrics.
//
// Metrics registered:
//   - {namespace}_ratelimit_checks_total           counter   (algorithm, decision)
//   - {namespace}_ratelimit_check_duration_seconds  histogram (algorithm)
//   - {namespace}_ratelimit_errors_total           counter   (algorithm)
//   - {namespace}_requests_total                   counter
//   - {namespace}_cache_hits_total                 counter
//
// Default namespace is "gateway".
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{
		namespace: "gateway",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "ratelimit_checks_total",
		Help:      "Total rate limit checks partitioned by algorithm and decision.",
	}, []string{"algorithm", "decision"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "ratelimit_check_duration_seconds",
		Help:      "Latency of rate limit Countdown calls in seconds.",
		Buckets:   cfg.buckets,
	}, []string{"algorithm"})

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "ratelimit_errors_total",
		Help:      "Total rate limiter backend errors.",
	}, []string{"algorithm"})

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "requests_total",
		Help:      "Total requests dispatched by the gateway.",
	})

	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total cache hits served by the gateway's cache feature.",
	})

	cfg.registry.MustRegister(requests, duration, errs, requestsTotal, cacheHitsTotal)

	return &Collector{
		requests:       requests,
		duration:       duration,
		errors:         errs,
		requestsTotal:  requestsTotal,
		cacheHitsTotal: cacheHitsTotal,
	}
}

// RecordRequest increments the total request counter.
func (c *Collector) RecordRequest() { c.requestsTotal.Inc() }

// RecordCacheHit increments the cache hit counter.
func (c *Collector) RecordCacheHit() { c.cacheHitsTotal.Inc() }

// Wrap returns an Algorithm that transparently records Prometheus metrics
// for every Countdown call delegated to inner.
func Wrap(inner ratelimit.Algorithm, algorithm string, c *Collector) ratelimit.Algorithm {
	return &instrumentedAlgorithm{inner: inner, algorithm: algorithm, collector: c}
}

type instrumentedAlgorithm struct {
	inner     ratelimit.Algorithm
	algorithm string
	collector *Collector
}

func (a *instrumentedAlgorithm) Countdown(ctx context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	start := time.Now()
	cd, err := a.inner.Countdown(ctx, key, quota, durationSeconds)
	a.collector.duration.WithLabelValues(a.algorithm).Observe(time.Since(start).Seconds())

	if err != nil {
		a.collector.errors.WithLabelValues(a.algorithm).Inc()
		return cd, err
	}

	decision := "denied"
	if cd == ratelimit.Admitted {
		decision = "admitted"
	}
	a.collector.requests.WithLabelValues(a.algorithm, decision).Inc()
	return cd, nil
}
