// Package metrics exports run outcomes as Prometheus metrics.
//
// tripflow is a batch job, so metrics live in a private registry that is
// pushed to a Pushgateway when the process finishes rather than scraped.
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	pipeline := pipeline.New(..., pipeline.WithObserver(collector))
//	...
//	err := collector.Push(ctx, "http://pushgateway:9091", "tripflow")
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ajitpratap0/tripflow/pkg/models"
)

// Namespace prefixes every metric name.
const Namespace = "tripflow"

// Collector records run reports. It is safe for concurrent use.
type Collector struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec   // runs by terminal status
	failures    *prometheus.CounterVec   // failed runs by stage and error kind
	rows        *prometheus.CounterVec   // rows read, written and dropped
	dropped     *prometheus.CounterVec   // dropped rows by reason
	cacheHits   prometheus.Counter       // runs served from the raw cache
	duration    prometheus.Histogram     // whole-run wall time
	stages      *prometheus.HistogramVec // per-stage wall time
	lastSuccess *prometheus.GaugeVec     // unix time of the last good run per partition
	startTime   time.Time
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Completed runs by status",
			},
			[]string{"status"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "run_failures_total",
				Help:      "Failed runs by the stage that failed and the error kind",
			},
			[]string{"stage", "kind"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_total",
				Help:      "Rows by pipeline stage (read, written, dropped)",
			},
			[]string{"stage"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_dropped_total",
				Help:      "Rows removed by validation, by reason",
			},
			[]string{"reason"},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "raw_cache_hits_total",
				Help:      "Runs that found their source file in the local cache",
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a run",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
			},
		),
		stages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of each run stage",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"stage"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time a partition was last written successfully",
			},
			[]string{"year", "month"},
		),
		startTime: time.Now(),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(r *models.RunReport) {
	if r == nil {
		return
	}

	c.runs.WithLabelValues(string(r.Status)).Inc()
	c.rows.WithLabelValues("read").Add(float64(r.RowsRead))
	c.rows.WithLabelValues("written").Add(float64(r.RowsWritten))
	c.rows.WithLabelValues("dropped").Add(float64(r.RowsDropped))
	for reason, n := range r.Drops.ByReason() {
		c.dropped.WithLabelValues(reason).Add(float64(n))
	}
	if r.CacheHit {
		c.cacheHits.Inc()
	}
	c.duration.Observe(r.Elapsed.Seconds())
	for stage, d := range r.Timings {
		c.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
	}

	if r.Succeeded() {
		c.lastSuccess.WithLabelValues(strconv.Itoa(r.Unit.Year), strconv.Itoa(r.Unit.Month)).
			Set(float64(r.StartedAt.Add(r.Elapsed).Unix()))
		return
	}
	kind := r.ErrorKind
	if kind == "" {
		kind = "unknown"
	}
	c.failures.WithLabelValues(string(r.Stage), kind).Inc()
}

// Push sends every metric to a Pushgateway, replacing the job's group.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = Namespace
	}
	return push.New(url, job).Gatherer(c.registry).PushContext(ctx)
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	name  string
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Name returns the timer's label
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the time elapsed since the timer started.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
