package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "facility_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  prometheus.Histogram

	evaluationsTotal *prometheus.CounterVec
	ruleSkippedTotal *prometheus.CounterVec
	tickLatency      *prometheus.HistogramVec

	alertEventsTotal *prometheus.CounterVec
	escalationsTotal prometheus.Counter

	dispatchTotal   *prometheus.CounterVec
	dispatchLatency prometheus.Histogram

	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total snapshot ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Snapshot ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_evaluations_total",
				Help: "Total rule evaluations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)
		ruleSkippedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_skipped_total",
				Help: "Total rules skipped by reason",
			},
			[]string{"reason"},
		)
		tickLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "engine_tick_latency_seconds",
				Help:    "Engine tick latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"engine"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)
		escalationsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_escalations_total",
				Help: "Total alert escalation steps",
			},
		)

		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "action_dispatch_total",
				Help: "Total dispatched actions by kind and result",
			},
			[]string{"kind", "result"},
		)
		dispatchLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "action_dispatch_latency_seconds",
				Help:    "Action dispatch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds by format and result",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			evaluationsTotal,
			ruleSkippedTotal,
			tickLatency,
			alertEventsTotal,
			escalationsTotal,
			dispatchTotal,
			dispatchLatency,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncIngest counts one snapshot ingest request.
func IncIngest(result string) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result).Inc()
}

// ObserveIngestLatency records snapshot ingest latency.
func ObserveIngestLatency(duration time.Duration) {
	if ingestLatency == nil {
		return
	}
	ingestLatency.Observe(duration.Seconds())
}

// IncEvaluation counts one rule evaluation.
func IncEvaluation(kind string, matched bool) {
	if evaluationsTotal == nil {
		return
	}
	outcome := "false"
	if matched {
		outcome = "true"
	}
	evaluationsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncRuleSkipped counts a rule skipped at load time.
func IncRuleSkipped(reason string) {
	if ruleSkippedTotal == nil {
		return
	}
	ruleSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveTick records one engine tick.
func ObserveTick(engine string, duration time.Duration) {
	if tickLatency == nil {
		return
	}
	tickLatency.WithLabelValues(engine).Observe(duration.Seconds())
}

// IncAlertEvent counts an alert lifecycle event.
func IncAlertEvent(event string) {
	if alertEventsTotal == nil {
		return
	}
	alertEventsTotal.WithLabelValues(event).Inc()
}

// IncEscalation counts one escalation step.
func IncEscalation() {
	if escalationsTotal == nil {
		return
	}
	escalationsTotal.Inc()
}

// ObserveDispatch records one action dispatch.
func ObserveDispatch(kind string, err error, duration time.Duration) {
	if dispatchTotal == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	dispatchTotal.WithLabelValues(kind, result).Inc()
	if dispatchLatency != nil {
		dispatchLatency.Observe(duration.Seconds())
	}
}

// ObserveExport records one report export.
func ObserveExport(format, result string, duration time.Duration) {
	if exportLatency == nil {
		return
	}
	exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "alerts_open",
			Help: "Alerts currently active or acknowledged",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM alerts WHERE status IN ('active','acknowledged')")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "event_outbox_pending",
			Help: "Pending outbox records",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "event_dlq_count",
			Help: "Dead letter queue records",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM dead_letter_events")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
