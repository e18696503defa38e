package event

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applied = Event{
	Message:     "pipeline develop applied 2 deployments",
	Timestamp:   time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC),
	Topics:      []string{TopicPipeline, TopicApply},
	Description: "develop: dev/default",
	Fields: []Field{
		{Title: "api", Value: "registry/api:v2"},
		{Title: "worker", Value: "registry/worker:v3"},
	},
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "pipeline develop applied 2 deployments [pipeline,apply] api=registry/api:v2 worker=registry/worker:v3", applied.String())
	assert.True(t, applied.HasTopic(TopicApply))
	assert.False(t, applied.HasTopic(TopicError))
}

func TestLogSink(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := LogSink{Logger: log.NewLogfmtLogger(buf)}
	require.NoError(t, sink.Log(context.Background(), applied))
	assert.Equal(t, `event="pipeline develop applied 2 deployments" topics=pipeline,apply description="develop: dev/default" api=registry/api:v2 worker=registry/worker:v3`+"\n", buf.String())
}

func TestWebhookSink(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
	}))
	defer server.Close()

	require.NoError(t, NewWebhookSink(http.DefaultClient, server.URL).Log(context.Background(), applied))
	assert.Equal(t, applied, <-received)
}

func TestWebhookSinkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookSink(http.DefaultClient, server.URL).Log(context.Background(), applied)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no thanks")
}

type recordingSink struct {
	events chan Event
	err    error
}

func (s *recordingSink) Log(_ context.Context, e Event) error {
	s.events <- e
	return s.err
}

func TestMulti(t *testing.T) {
	ok := &recordingSink{events: make(chan Event, 1)}
	failing := &recordingSink{events: make(chan Event, 1), err: assert.AnError}

	err := Multi{ok, failing}.Log(context.Background(), applied)
	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, applied, <-ok.events)
	assert.Equal(t, applied, <-failing.events)
}
