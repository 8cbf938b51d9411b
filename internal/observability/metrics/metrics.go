package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "waterworks_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	billGenerateTotal   *prometheus.CounterVec
	billGenerateLatency *prometheus.HistogramVec

	paymentTotal   *prometheus.CounterVec
	paymentLatency *prometheus.HistogramVec

	penaltySweepTotal   *prometheus.CounterVec
	penaltySweepUpdated prometheus.Counter
	penaltySweepLatency *prometheus.HistogramVec

	penaltyWaiveTotal *prometheus.CounterVec

	readingEventsTotal *prometheus.CounterVec

	aiReadTotal   *prometheus.CounterVec
	aiReadLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total smart meter ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total smart meter ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Smart meter ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		billGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_generate_total",
				Help: "Total bill generate operations by result",
			},
			[]string{"result"},
		)
		billGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "bill_generate_latency_seconds",
				Help:    "Bill generate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paymentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_total",
				Help: "Total payment operations by result",
			},
			[]string{"result"},
		)
		paymentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_latency_seconds",
				Help:    "Payment processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		penaltySweepTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "penalty_sweep_total",
				Help: "Total penalty sweep runs by result",
			},
			[]string{"result"},
		)
		penaltySweepUpdated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "penalty_sweep_updated_bills_total",
				Help: "Total bills updated by penalty sweeps",
			},
		)
		penaltySweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "penalty_sweep_latency_seconds",
				Help:    "Penalty sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		penaltyWaiveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "penalty_waive_total",
				Help: "Total penalty waive operations by result",
			},
			[]string{"result"},
		)

		readingEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_events_total",
				Help: "Total meter reading lifecycle events by type",
			},
			[]string{"event"},
		)

		aiReadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ai_read_total",
				Help: "Total AI meter read requests by result",
			},
			[]string{"result"},
		)
		aiReadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ai_read_latency_seconds",
				Help:    "AI meter read latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			billGenerateTotal,
			billGenerateLatency,
			paymentTotal,
			paymentLatency,
			penaltySweepTotal,
			penaltySweepUpdated,
			penaltySweepLatency,
			penaltyWaiveTotal,
			readingEventsTotal,
			aiReadTotal,
			aiReadLatency,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveBillGenerate records bill generate latency and result.
func ObserveBillGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if billGenerateTotal != nil {
		billGenerateTotal.WithLabelValues(result).Inc()
	}
	if billGenerateLatency != nil {
		billGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePayment records payment latency and result.
func ObservePayment(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if paymentTotal != nil {
		paymentTotal.WithLabelValues(result).Inc()
	}
	if paymentLatency != nil {
		paymentLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePenaltySweep records a sweep run with its updated bill count.
func ObservePenaltySweep(result string, updated int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if penaltySweepTotal != nil {
		penaltySweepTotal.WithLabelValues(result).Inc()
	}
	if penaltySweepUpdated != nil && updated > 0 {
		penaltySweepUpdated.Add(float64(updated))
	}
	if penaltySweepLatency != nil {
		penaltySweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPenaltyWaive increments penalty waive counter.
func IncPenaltyWaive(result string) {
	if result == "" {
		result = resultSuccess
	}
	if penaltyWaiveTotal != nil {
		penaltyWaiveTotal.WithLabelValues(result).Inc()
	}
}

// IncReadingEvent increments reading lifecycle counters.
func IncReadingEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if readingEventsTotal != nil {
		readingEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveAIRead records AI meter read latency and result.
func ObserveAIRead(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if aiReadTotal != nil {
		aiReadTotal.WithLabelValues(result).Inc()
	}
	if aiReadLatency != nil {
		aiReadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
