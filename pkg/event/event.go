package event

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Topics events are tagged with.
const (
	TopicPipeline = "pipeline"
	TopicApply    = "apply"
	TopicRestore  = "restore"
	TopicError    = "error"
)

// Field is a titled value, shown as-is by whatever renders the event.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Event is a notification that something happened to the clusters,
// e.g., that a pipeline applied its plan.
type Event struct {
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Topics      []string  `json:"topics,omitempty"`
	Description string    `json:"description,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
}

// Sink receives events. Implementations should not block for long,
// since events are logged on the way out of an operation.
type Sink interface {
	Log(ctx context.Context, e Event) error
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Topics) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Topics, ","))
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Title, f.Value)
	}
	return b.String()
}

// HasTopic reports whether the event is tagged with topic.
func (e Event) HasTopic(topic string) bool {
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
