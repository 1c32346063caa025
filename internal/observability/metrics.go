package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and gauges for the watcher.
type Metrics struct {
	TicksTotal       prometheus.Counter
	FeedNotModified  prometheus.Counter
	FetchErrors      prometheus.Counter
	ReportsFetched   prometheus.Counter
	ParseErrors      prometheus.Counter
	Transitions      *prometheus.CounterVec // label: kind={issued,continued,cancelled}
	RetentionRuns    prometheus.Counter
	RecordsPurged    prometheus.Counter
	FilesQuarantined prometheus.Counter
	LastTickUnix     prometheus.Gauge
}

// NewMetrics creates and registers all watcher metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TicksTotal,
		m.FeedNotModified,
		m.FetchErrors,
		m.ReportsFetched,
		m.ParseErrors,
		m.Transitions,
		m.RetentionRuns,
		m.RecordsPurged,
		m.FilesQuarantined,
		m.LastTickUnix,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "ticks_total",
			Help:      "Total check ticks run.",
		}),
		FeedNotModified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "feed_not_modified_total",
			Help:      "Conditional feed fetches answered with 304.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "fetch_errors_total",
			Help:      "Transport or status failures while fetching.",
		}),
		ReportsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "reports_fetched_total",
			Help:      "Inner report documents downloaded and parsed.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "parse_errors_total",
			Help:      "Report entries skipped due to parse failures.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "transitions_total",
			Help:      "Emitted warning transitions by kind.",
		}, []string{"kind"}),
		RetentionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "retention_runs_total",
			Help:      "Completed retention sweeps.",
		}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "records_purged_total",
			Help:      "Rows hard-deleted by the retention purge.",
		}),
		FilesQuarantined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warning_watch",
			Name:      "files_quarantined_total",
			Help:      "Cache files moved to quarantine.",
		}),
		LastTickUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warning_watch",
			Name:      "last_tick_unix",
			Help:      "Unix time of the last completed check tick.",
		}),
	}
}
