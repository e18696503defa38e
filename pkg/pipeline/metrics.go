package pipeline

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
)

var (
	runDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "promoter",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of pipeline runs (plan and apply), in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120},
	}, []string{fluxmetrics.LabelPipeline, fluxmetrics.LabelTrigger, fluxmetrics.LabelSuccess})

	actionsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "promoter",
		Subsystem: "pipeline",
		Name:      "actions_total",
		Help:      "Deployment updates attempted by pipelines.",
	}, []string{fluxmetrics.LabelPipeline, fluxmetrics.LabelOutcome})
)
