package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesConfirmed *prometheus.CounterVec
	entriesReversed  *prometheus.CounterVec
	numberingRetries prometheus.Counter
	sessionsOpened   prometheus.Counter
	sessionsClosed   *prometheus.CounterVec

	jobs *jobmetrics.Metrics
}

// NewMetrics menginisialisasi registry, metrik HTTP, metrik ledger dan metrik job.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_confirmed_total",
		Help: "Jumlah entri ledger yang dikonfirmasi per tipe.",
	}, []string{"entry_type"})
	reversed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_reversed_total",
		Help: "Jumlah entri ledger yang dibatalkan lewat reversal per tipe.",
	}, []string{"entry_type"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_numbering_retries_total",
		Help: "Jumlah percobaan ulang karena nomor dokumen bentrok.",
	})
	opened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cash_sessions_opened_total",
		Help: "Jumlah sesi kas yang dibuka.",
	})
	closed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cash_sessions_closed_total",
		Help: "Jumlah sesi kas yang ditutup berdasarkan hasil hitung (balanced, over, short).",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, confirmed, reversed, retries, opened, closed)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		entriesConfirmed: confirmed,
		entriesReversed:  reversed,
		numberingRetries: retries,
		sessionsOpened:   opened,
		sessionsClosed:   closed,
		jobs:             jobmetrics.NewMetrics(registry),
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs mengembalikan metrik job yang terdaftar pada registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// EntryConfirmed implements ledger.MetricsPort.
func (m *Metrics) EntryConfirmed(entryType string) {
	if m == nil {
		return
	}
	m.entriesConfirmed.WithLabelValues(entryType).Inc()
}

// EntryReversed implements ledger.MetricsPort.
func (m *Metrics) EntryReversed(entryType string) {
	if m == nil {
		return
	}
	m.entriesReversed.WithLabelValues(entryType).Inc()
}

// NumberingRetried implements ledger.MetricsPort.
func (m *Metrics) NumberingRetried() {
	if m == nil {
		return
	}
	m.numberingRetries.Inc()
}

// SessionOpened implements cashsession.MetricsPort.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

// SessionClosed implements cashsession.MetricsPort.
func (m *Metrics) SessionClosed(outcome string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
