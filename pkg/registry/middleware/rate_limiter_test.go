package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackOffOnTooManyRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	limiters := &RateLimiters{RPS: 100, Burst: 10}
	client := &http.Client{Transport: limiters.Transport(http.DefaultTransport, "registry.test")}

	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	}
	// Only the first throttled response counts, per transport.
	assert.Equal(t, 50.0, limiters.Limit("registry.test"))
	assert.Equal(t, 100.0, limiters.Limit("other.test"))
}

func TestRecoverIsCappedAtRPS(t *testing.T) {
	limiters := &RateLimiters{RPS: 10, Burst: 1}
	limiters.Transport(http.DefaultTransport, "registry.test").(*limitedTransport).backOff()
	assert.Equal(t, 5.0, limiters.Limit("registry.test"))

	limiters.Recover("registry.test")
	assert.Equal(t, 7.5, limiters.Limit("registry.test"))
	limiters.Recover("registry.test")
	assert.Equal(t, 10.0, limiters.Limit("registry.test"))
}

func TestBackOffHasAFloor(t *testing.T) {
	limiters := &RateLimiters{RPS: 0.15, Burst: 1}
	limiters.Transport(http.DefaultTransport, "registry.test").(*limitedTransport).backOff()
	assert.Equal(t, minLimit, limiters.Limit("registry.test"))
}
