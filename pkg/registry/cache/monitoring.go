package cache

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
)

var (
	cacheRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "promoter",
		Subsystem: "registry_cache",
		Name:      "request_duration_seconds",
		Help:      "Duration of shared registry cache requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelSuccess})
)

type instrumentedClient struct {
	next Client
}

func InstrumentClient(c Client) Client {
	return &instrumentedClient{
		next: c,
	}
}

func (i *instrumentedClient) GetKey(k Keyer) (_ []byte, _ time.Time, err error) {
	defer func(begin time.Time) {
		// a miss is not a failure of the cache
		cacheRequestDuration.With(
			fluxmetrics.LabelMethod, "GetKey",
			fluxmetrics.LabelSuccess, fmt.Sprint(err == nil || err == ErrNotCached),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.GetKey(k)
}

func (i *instrumentedClient) SetKey(k Keyer, d time.Time, v []byte) (err error) {
	defer func(begin time.Time) {
		cacheRequestDuration.With(
			fluxmetrics.LabelMethod, "SetKey",
			fluxmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.SetKey(k, d, v)
}
