package dispatch

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
)

var (
	callDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "promoter",
		Subsystem: "dispatch",
		Name:      "call_duration_seconds",
		Help:      "Duration of dispatched calls, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelLayer, fluxmetrics.LabelSuccess})

	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "promoter",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}
