package registry

// Monitoring middleware for the registry gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/promoter/pkg/image"
	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
)

var (
	registryDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "promoter",
		Subsystem: "registry",
		Name:      "request_duration_seconds",
		Help:      "Duration of image registry requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelSuccess})
)

type instrumentedGateway struct {
	next Gateway
}

// Instrument records the duration of each call to next.
func Instrument(next Gateway) Gateway {
	return &instrumentedGateway{next: next}
}

func observe(method string, start time.Time, err error) {
	registryDuration.With(
		fluxmetrics.LabelMethod, method,
		fluxmetrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(start).Seconds())
}

func (m *instrumentedGateway) List(ctx context.Context) (res []string, err error) {
	defer func(start time.Time) { observe("List", start, err) }(time.Now())
	return m.next.List(ctx)
}

func (m *instrumentedGateway) Tags(ctx context.Context, name string) (res []string, err error) {
	defer func(start time.Time) { observe("Tags", start, err) }(time.Now())
	return m.next.Tags(ctx, name)
}

func (m *instrumentedGateway) Image(ctx context.Context, name, tag string) (res image.Image, err error) {
	defer func(start time.Time) { observe("Image", start, err) }(time.Now())
	return m.next.Image(ctx, name, tag)
}
