package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters of the reporter service. A fresh registry
// per instance keeps tests independent of the default one
type Metrics struct {
	reg *prometheus.Registry

	ReportsBuilt   *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
	EventsAccepted *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	RowsDeduped    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ReportsBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_reports_built_total",
			Help: "Reports assembled, by outcome.",
		}, []string{"outcome"}),
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporter_build_duration_seconds",
			Help:    "Wall time of a single report assembly.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		EventsAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_events_accepted_total",
			Help: "Rows classified into events, by collection.",
		}, []string{"collection"}),
		EventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_events_rejected_total",
			Help: "Rows rejected during classification, by collection.",
		}, []string{"collection"}),
		RowsDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "reporter_rows_deduped_total",
			Help: "Rows skipped as duplicates of already-processed ones.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
