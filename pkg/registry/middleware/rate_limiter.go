package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps one limiter per registry host. A transport
// obtained from Transport halves the limit for its host the first time
// it sees `429 Too Many Requests`; Recover raises it again, in smaller
// steps, up to RPS.
type RateLimiters struct {
	RPS    float64
	Burst  int
	Logger log.Logger

	mu      sync.Mutex
	perHost map[string]*rate.Limiter
}

// limiterFor must be called with mu held.
func (l *RateLimiters) limiterFor(host string) *rate.Limiter {
	if l.perHost == nil {
		l.perHost = map[string]*rate.Limiter{}
	}
	limiter, ok := l.perHost[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.RPS), l.Burst)
		l.perHost[host] = limiter
	}
	return limiter
}

func (l *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > l.RPS {
		return l.RPS
	}
	return limit
}

func (l *RateLimiters) adjust(host string, factor float64, verb string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter := l.limiterFor(host)
	oldLimit := float64(limiter.Limit())
	newLimit := l.clip(oldLimit * factor)
	if newLimit == oldLimit {
		return
	}
	if l.Logger != nil {
		l.Logger.Log("info", verb+" rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Recover is called after a request to host has gone through without
// being throttled.
func (l *RateLimiters) Recover(host string) {
	l.mu.Lock()
	_, known := l.perHost[host]
	l.mu.Unlock()
	if known {
		l.adjust(host, recoverBy, "increasing")
	}
}

// Limit reports the current limit for host, in requests per second.
func (l *RateLimiters) Limit(host string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.limiterFor(host).Limit())
}

// Transport returns a RoundTripper that waits for the limiter of host
// before passing requests on to next.
func (l *RateLimiters) Transport(next http.RoundTripper, host string) http.RoundTripper {
	l.mu.Lock()
	limiter := l.limiterFor(host)
	l.mu.Unlock()

	var once sync.Once
	return &limitedTransport{
		limiter: limiter,
		next:    next,
		backOff: func() {
			once.Do(func() { l.adjust(host, 1/backOffBy, "reducing") })
		},
	}
}

type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
	backOff func()
}

func (t *limitedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait fails straight away if the context deadline would pass
	// before a token is available.
	if err := t.limiter.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.backOff()
	}
	return resp, nil
}
