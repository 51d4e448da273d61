package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	overdueCount  prometheus.Gauge
	overdueAmount prometheus.Gauge
	cleaned       prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetOverdue publishes the result of the latest overdue quota scan.
func (m *Metrics) SetOverdue(count int, amount float64) {
	if m == nil {
		return
	}
	m.overdueCount.Set(float64(count))
	m.overdueAmount.Set(amount)
}

// AddCleaned counts removed idempotency keys.
func (m *Metrics) AddCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleaned.Add(float64(n))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	overdueCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_quotas_overdue",
		Help: "Number of overdue credit quotas found by the last scan.",
	})
	overdueAmount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_quotas_overdue_amount",
		Help: "Sum of overdue credit quota amounts found by the last scan.",
	})
	cleaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotency_keys_cleaned_total",
		Help: "Idempotency keys removed after their retention period.",
	})
	registerer.MustRegister(runs, failures, duration, overdueCount, overdueAmount, cleaned)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		overdueCount:  overdueCount,
		overdueAmount: overdueAmount,
		cleaned:       cleaned,
	}
}
