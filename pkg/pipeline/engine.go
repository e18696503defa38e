package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/event"
	"github.com/fluxcd/promoter/pkg/job"
	fluxmetrics "github.com/fluxcd/promoter/pkg/metrics"
	"github.com/fluxcd/promoter/pkg/registry"
)

const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
	TriggerApply  = "apply"

	recentJobs = 100
)

// Engine runs pipelines: it plans them, applies plans, and keeps each
// pipeline to one run at a time.
type Engine struct {
	pipelines map[string]Description
	names     []string
	clusters  cluster.Gateway
	images    registry.Gateway
	events    event.Sink
	logger    log.Logger
	now       func() time.Time

	mu    sync.Mutex
	state map[string]*pipelineState
	jobs  *job.History
}

type pipelineState struct {
	state   State
	lastRun *time.Time
	lastJob job.ID
}

// New makes an engine for the given pipelines. images may be nil if
// no pipeline takes its images from a registry.
func New(pipelines []Description, clusters cluster.Gateway, images registry.Gateway, events event.Sink, logger log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	e := &Engine{
		pipelines: map[string]Description{},
		clusters:  clusters,
		images:    images,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		state:     map[string]*pipelineState{},
		jobs:      &job.History{Size: recentJobs},
	}
	for _, p := range pipelines {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := e.pipelines[p.Name]; ok {
			return nil, fmt.Errorf("pipeline %s defined more than once", p.Name)
		}
		e.pipelines[p.Name] = p
		e.names = append(e.names, p.Name)
		e.state[p.Name] = &pipelineState{state: Idle}
	}
	sort.Strings(e.names)
	return e, nil
}

func (e *Engine) description(name string) (Description, error) {
	d, ok := e.pipelines[name]
	if !ok {
		return Description{}, UnknownPipelineError(name)
	}
	return d, nil
}

// Pipelines lists every pipeline with its state, schedule and most
// recent run.
func (e *Engine) Pipelines(ctx context.Context) ([]Status, error) {
	statuses := make([]Status, 0, len(e.names))
	for _, name := range e.names {
		desc := e.pipelines[name]
		e.mu.Lock()
		st := *e.state[name]
		e.mu.Unlock()
		s := Status{
			Pipeline: desc,
			State:    st.state,
			Cron:     e.schedule(desc, st.lastRun),
		}
		if st.lastJob != "" {
			if j, ok := e.jobs.Get(st.lastJob); ok {
				s.LastJob = &j
			}
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Schedules gives the last and next runs of a pipeline. It changes
// nothing.
func (e *Engine) Schedules(ctx context.Context, name string) (Cron, error) {
	desc, err := e.description(name)
	if err != nil {
		return Cron{}, err
	}
	e.mu.Lock()
	lastRun := e.state[name].lastRun
	e.mu.Unlock()
	return e.schedule(desc, lastRun), nil
}

func (e *Engine) schedule(desc Description, lastRun *time.Time) Cron {
	c := Cron{NextRuns: []time.Time{}}
	if lastRun != nil {
		t := *lastRun
		c.LastRun = &t
	}
	if desc.Cron != "" {
		// Descriptions are validated on the way in.
		if runs, err := NextRuns(desc.Cron, e.now(), DefaultNextRuns); err == nil {
			c.NextRuns = runs
		}
	}
	return c
}

// Plan computes what the pipeline would change in its target, without
// changing anything.
func (e *Engine) Plan(ctx context.Context, name string) (Plan, error) {
	desc, err := e.description(name)
	if err != nil {
		return Plan{}, err
	}
	return e.plan(ctx, desc)
}

func (e *Engine) plan(ctx context.Context, desc Description) (Plan, error) {
	var (
		actions []Action
		err     error
	)
	switch desc.From.Type {
	case SourceImage:
		actions, err = e.fromImages(ctx, desc)
	case SourceCluster:
		actions, err = e.fromCluster(ctx, desc)
	}
	if err != nil {
		return Plan{}, err
	}
	if actions == nil {
		actions = []Action{}
	}
	return Plan{Pipeline: desc.Name, Target: desc.Target(), Actions: actions}, nil
}

// Apply carries out a plan and returns the deployments that were
// updated. Deployments that could not be updated are recorded in the
// run's status and the event for the batch, and don't stop the rest.
func (e *Engine) Apply(ctx context.Context, plan Plan) ([]cluster.Deployment, error) {
	desc, err := e.description(plan.Pipeline)
	if err != nil {
		return nil, err
	}
	if plan.Target.WithDefaults() != desc.Target().WithDefaults() {
		return nil, TargetMismatchError(desc, plan.Target)
	}
	if err := e.acquire(desc.Name, Applying); err != nil {
		return nil, err
	}
	defer e.release(desc.Name)

	status := e.start(desc.Name, TriggerApply)
	result := e.apply(ctx, desc, plan)
	e.finish(desc.Name, status, result, nil)
	return result.Applied, nil
}

// Run plans and applies a pipeline. A run that fails is reported in
// the returned status; the error is for runs that could not start.
func (e *Engine) Run(ctx context.Context, name, trigger string) (job.Status, error) {
	desc, err := e.description(name)
	if err != nil {
		return job.Status{}, err
	}
	if err := e.acquire(name, Planning); err != nil {
		return job.Status{}, err
	}
	defer e.release(name)

	status := e.start(name, trigger)
	plan, err := e.plan(ctx, desc)
	var result cluster.ApplyResult
	if err == nil {
		e.setState(name, Applying)
		result = e.apply(ctx, desc, plan)
	} else {
		e.emit(ctx, event.Event{
			Message:     fmt.Sprintf("Pipeline %s could not plan: %s", name, err),
			Timestamp:   e.now(),
			Topics:      []string{event.TopicPipeline, event.TopicError},
			Description: desc.From.String(),
		})
	}
	return e.finish(name, status, result, err), nil
}

func (e *Engine) apply(ctx context.Context, desc Description, plan Plan) cluster.ApplyResult {
	group := desc.Target()
	result := cluster.ApplyResult{Applied: []cluster.Deployment{}}
	for _, action := range plan.Actions {
		d, err := e.clusters.UpdateDeployment(ctx, group, action.Deployment, action.TargetImage)
		if err != nil {
			e.logger.Log("pipeline", desc.Name, "deployment", action.Deployment, "image", action.TargetImage, "err", err)
			result.Errored = append(result.Errored, cluster.ApplyError{Deployment: action.Deployment, Error: err.Error()})
			actionsTotal.With(fluxmetrics.LabelPipeline, desc.Name, fluxmetrics.LabelOutcome, "failed").Add(1)
			continue
		}
		result.Applied = append(result.Applied, d)
		actionsTotal.With(fluxmetrics.LabelPipeline, desc.Name, fluxmetrics.LabelOutcome, "applied").Add(1)
	}
	if len(plan.Actions) > 0 {
		e.emit(ctx, resultEvent(fmt.Sprintf("Pipeline %s applied to %s", desc.Name, group), e.now(), desc.From.String(), result, event.TopicPipeline, event.TopicApply))
	}
	return result
}

// Restore applies a snapshot to a namespace, leaving alone whatever
// already matches it.
func (e *Engine) Restore(ctx context.Context, group cluster.ServerGroup, snapshot cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
	group = group.WithDefaults()
	result, err := e.clusters.ApplySnapshot(ctx, group, snapshot, ignoreImage)
	if err != nil {
		return cluster.ApplyResult{}, err
	}
	if !result.Empty() {
		description := "restoring deployment specs"
		if !ignoreImage {
			description = "restoring deployment specs and images"
		}
		e.emit(ctx, resultEvent(fmt.Sprintf("Snapshot restored to %s", group), e.now(), description, result, event.TopicRestore))
	}
	return result, nil
}

func resultEvent(message string, now time.Time, description string, result cluster.ApplyResult, topics ...string) event.Event {
	if len(result.Errored) > 0 {
		topics = append(topics, event.TopicError)
	}
	var fields []event.Field
	for _, d := range result.Applied {
		value := "updated"
		if d.Image != nil {
			value = d.Image.URL
		}
		fields = append(fields, event.Field{Title: d.Name, Value: value})
	}
	for _, failed := range result.Errored {
		fields = append(fields, event.Field{Title: failed.Deployment, Value: "failed: " + failed.Error})
	}
	return event.Event{
		Message:     message + ": " + result.String(),
		Timestamp:   now,
		Topics:      topics,
		Description: description,
		Fields:      fields,
	}
}

func (e *Engine) emit(ctx context.Context, ev event.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Log(ctx, ev); err != nil {
		e.logger.Log("event", ev.Message, "err", err)
	}
}

func (e *Engine) acquire(name string, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state[name]
	if st.state != Idle {
		return BusyError(name, st.state)
	}
	st.state = to
	return nil
}

func (e *Engine) setState(name string, to State) {
	e.mu.Lock()
	e.state[name].state = to
	e.mu.Unlock()
}

func (e *Engine) release(name string) {
	e.setState(name, Idle)
}

func (e *Engine) start(name, trigger string) job.Status {
	now := e.now()
	status := job.Status{
		ID:           job.NewID(),
		Trigger:      trigger,
		StartedAt:    now,
		StatusString: job.StatusRunning,
	}
	e.jobs.Record(status)
	e.mu.Lock()
	e.state[name].lastJob = status.ID
	e.mu.Unlock()
	return status
}

func (e *Engine) finish(name string, status job.Status, result cluster.ApplyResult, err error) job.Status {
	status = status.Finish(e.now(), result, err)
	e.jobs.Record(status)
	startedAt := status.StartedAt
	e.mu.Lock()
	e.state[name].lastRun = &startedAt
	e.mu.Unlock()
	runDuration.With(
		fluxmetrics.LabelPipeline, name,
		fluxmetrics.LabelTrigger, status.Trigger,
		fluxmetrics.LabelSuccess, strconv.FormatBool(status.StatusString == job.StatusSucceeded),
	).Observe(status.FinishedAt.Sub(status.StartedAt).Seconds())
	if status.StatusString == job.StatusFailed {
		e.logger.Log("pipeline", name, "job", status.ID, "trigger", status.Trigger, "err", status.Err)
	} else {
		e.logger.Log("pipeline", name, "job", status.ID, "trigger", status.Trigger, "result", status.Result.String())
	}
	return status
}
