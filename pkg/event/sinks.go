package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// LogSink writes events to a logger.
type LogSink struct {
	Logger log.Logger
}

func (s LogSink) Log(_ context.Context, e Event) error {
	kv := []interface{}{"event", e.Message, "topics", strings.Join(e.Topics, ",")}
	if e.Description != "" {
		kv = append(kv, "description", e.Description)
	}
	for _, f := range e.Fields {
		kv = append(kv, f.Title, f.Value)
	}
	return s.Logger.Log(kv...)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// WebhookSink POSTs each event, as JSON, to a URL.
type WebhookSink struct {
	d   Doer
	url string
}

func NewWebhookSink(d Doer, url string) *WebhookSink {
	return &WebhookSink{d: d, url: url}
}

func (s *WebhookSink) Log(ctx context.Context, e Event) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(e); err != nil {
		return errors.Wrap(err, "encoding event")
	}
	req, err := http.NewRequest("POST", s.url, buf)
	if err != nil {
		return errors.Wrap(err, "constructing webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.d.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "executing HTTP POST to webhook")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024*1024))
		return fmt.Errorf("%s from webhook (%s)", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Multi sends each event to all of its sinks, concurrently, and
// returns the first error (if any) after they have all finished.
type Multi []Sink

func (m Multi) Log(ctx context.Context, e Event) error {
	errs := make([]error, len(m))
	var wg sync.WaitGroup
	for i, sink := range m {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			errs[i] = sink.Log(ctx, e)
		}(i, sink)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
