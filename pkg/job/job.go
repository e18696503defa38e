package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/fluxcd/promoter/pkg/cluster"
)

// ID identifies one run of a pipeline.
type ID string

func NewID() ID {
	return ID(uuid.New().String())
}

type StatusString string

const (
	StatusRunning   StatusString = "running"
	StatusFailed    StatusString = "failed"
	StatusSucceeded StatusString = "succeeded"
)

// Status holds the possible states of a run; either,
//  1. running
//  2. succeeded, with the result of applying the plan
//  3. failed, with an error and possibly a partial result
type Status struct {
	ID           ID                  `json:"id"`
	Trigger      string              `json:"trigger,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	FinishedAt   *time.Time          `json:"finishedAt,omitempty"`
	Result       cluster.ApplyResult `json:"result"`
	Err          string              `json:"err,omitempty"`
	StatusString StatusString        `json:"status"`
}

func (s Status) Error() string {
	return s.Err
}

// Done reports whether the run has finished, one way or the other.
func (s Status) Done() bool {
	return s.StatusString == StatusFailed || s.StatusString == StatusSucceeded
}

// Finish records the outcome of a run. A run fails if it couldn't
// proceed (err), or if any deployment could not be updated.
func (s Status) Finish(now time.Time, result cluster.ApplyResult, err error) Status {
	s.FinishedAt = &now
	s.Result = result
	switch {
	case err != nil:
		s.Err = err.Error()
		s.StatusString = StatusFailed
	case len(result.Errored) > 0:
		s.Err = result.String()
		s.StatusString = StatusFailed
	default:
		s.StatusString = StatusSucceeded
	}
	return s
}
