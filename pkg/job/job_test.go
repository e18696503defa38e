package job

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fluxcd/promoter/pkg/cluster"
)

func TestNewIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}

func TestHistoryForgetsOldest(t *testing.T) {
	h := &History{Size: 2}
	h.Record(Status{ID: "a", StatusString: StatusRunning})
	h.Record(Status{ID: "b", StatusString: StatusRunning})
	h.Record(Status{ID: "a", StatusString: StatusSucceeded})

	a, ok := h.Get("a")
	assert.True(t, ok)
	assert.Equal(t, StatusSucceeded, a.StatusString)

	h.Record(Status{ID: "c", StatusString: StatusRunning})
	_, ok = h.Get("a")
	assert.False(t, ok)
	for _, id := range []ID{"b", "c"} {
		_, ok = h.Get(id)
		assert.True(t, ok, id)
	}
}

func TestHistoryWithoutSize(t *testing.T) {
	h := &History{}
	h.Record(Status{ID: "a"})
	_, ok := h.Get("a")
	assert.False(t, ok)
}

func TestFinish(t *testing.T) {
	now := time.Now()
	started := Status{ID: "a", StatusString: StatusRunning}

	ok := started.Finish(now, cluster.ApplyResult{Applied: []cluster.Deployment{{Name: "api"}}}, nil)
	assert.Equal(t, StatusSucceeded, ok.StatusString)
	assert.True(t, ok.Done())
	assert.Equal(t, now, *ok.FinishedAt)

	partial := started.Finish(now, cluster.ApplyResult{Errored: []cluster.ApplyError{{Deployment: "api", Error: "boom"}}}, nil)
	assert.Equal(t, StatusFailed, partial.StatusString)
	assert.NotEmpty(t, partial.Err)

	failed := started.Finish(now, cluster.ApplyResult{}, errors.New("no such cluster"))
	assert.Equal(t, StatusFailed, failed.StatusString)
	assert.Equal(t, "no such cluster", failed.Error())
	assert.False(t, started.Done())
}
