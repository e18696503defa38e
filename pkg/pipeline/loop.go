package pipeline

import (
	"context"
	"sync"

	cron "gopkg.in/robfig/cron.v2"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// Loop runs each pipeline that has a schedule, until told to stop.
// Ticks for different pipelines run independently; a tick that comes
// while the same pipeline is still running is skipped.
func (e *Engine) Loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	scheduler := cron.New()
	for _, name := range e.names {
		desc := e.pipelines[name]
		if desc.Cron == "" {
			continue
		}
		name := name
		if _, err := scheduler.AddFunc(cronSpec(desc.Cron), func() { e.tick(name) }); err != nil {
			e.logger.Log("pipeline", name, "cron", desc.Cron, "err", err)
			continue
		}
		e.logger.Log("pipeline", name, "cron", desc.Cron, "scheduled", "true")
	}
	scheduler.Start()
	<-stop
	scheduler.Stop()
	e.logger.Log("stopping", "true")
}

func (e *Engine) tick(name string) {
	_, err := e.Run(context.Background(), name, TriggerCron)
	switch {
	case err == nil:
	case fluxerr.IsUser(err):
		e.logger.Log("pipeline", name, "tick", "skipped", "reason", err)
	default:
		e.logger.Log("pipeline", name, "tick", "failed", "err", err)
	}
}
