package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tailspan_export_attempts_total",
		Help: "Number of span export attempts to the collector.",
	})
	exportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tailspan_export_failures_total",
		Help: "Number of span export attempts that failed.",
	})
	exportedSpans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tailspan_exported_spans_total",
		Help: "Number of spans successfully delivered to the collector.",
	})
)
