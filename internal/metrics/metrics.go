package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsort"

var (
	ingestBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Ingestion batches by result (success, failed)",
		},
		[]string{"result"},
	)

	pagesRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rendered_total",
			Help:      "Total pages rasterized",
		},
	)

	oracleReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Classification oracle calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	oracleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Duration of classification oracle calls by provider",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_fallbacks_total",
			Help:      "Pages labelled with a fallback by reason (error, timeout, rate_limited, empty, invalid_category)",
		},
		[]string{"reason"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export calls by mode and result",
		},
		[]string{"mode", "result"},
	)

	exportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of export calls by mode",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	ledgerDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_degraded_total",
			Help:      "History ledger operations that degraded to no-op by operation",
		},
		[]string{"op"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Upload sessions currently held in memory",
		},
	)
)

var registerOnce sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ingestBatches, pagesRendered, oracleReqs, oracleLatency, fallbacks,
			exports, exportLatency, ledgerDegraded, activeSessions)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncIngest(result string) { ingestBatches.WithLabelValues(result).Inc() }
func IncPagesRendered()       { pagesRendered.Inc() }

func ObserveOracle(provider, result string, dur time.Duration) {
	oracleReqs.WithLabelValues(provider, result).Inc()
	oracleLatency.WithLabelValues(provider).Observe(dur.Seconds())
}

func IncFallback(reason string) { fallbacks.WithLabelValues(reason).Inc() }

func ObserveExport(mode, result string, dur time.Duration) {
	exports.WithLabelValues(mode, result).Inc()
	exportLatency.WithLabelValues(mode).Observe(dur.Seconds())
}

func IncLedgerDegraded(op string) { ledgerDegraded.WithLabelValues(op).Inc() }

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }
