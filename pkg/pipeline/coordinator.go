package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/registry"
	"github.com/slipway-sh/slipway/pkg/source"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

// queuedRun carries a run and its target through the queue. The cancel
// channel is closed at most once; the executor checks it between
// stages so a running stage always finishes first.
type queuedRun struct {
	run    *types.PipelineRun
	target Target
	cancel chan struct{}
	once   sync.Once
}

func (q *queuedRun) requestCancel() {
	q.once.Do(func() {
		close(q.cancel)
	})
}

func (q *queuedRun) cancelRequested() bool {
	select {
	case <-q.cancel:
		return true
	default:
		return false
	}
}

// Coordinator drives pipeline runs through the five stages, one run at
// a time per cluster. Triggers for a busy cluster queue FIFO;
// independent clusters run in parallel.
type Coordinator struct {
	config  Config
	engines Engines
	store   storage.Store
	broker  *events.Broker
	logger  zerolog.Logger

	mu          sync.Mutex
	queues      map[string][]*queuedRun
	dispatching map[string]bool
	active      map[string]*queuedRun
	applyLocks  map[string]*sync.Mutex
	stopCh      chan struct{}
	stopped     bool
	wg          sync.WaitGroup
}

// NewCoordinator creates a coordinator persisting runs to the store.
// A nil broker gets a private one, for callers that never subscribe.
func NewCoordinator(config Config, engines Engines, store storage.Store, broker *events.Broker) *Coordinator {
	if broker == nil {
		broker = events.NewBroker()
	}
	return &Coordinator{
		config:      config,
		engines:     engines,
		store:       store,
		broker:      broker,
		logger:      log.WithComponent("pipeline"),
		queues:      make(map[string][]*queuedRun),
		dispatching: make(map[string]bool),
		active:      make(map[string]*queuedRun),
		applyLocks:  make(map[string]*sync.Mutex),
		stopCh:      make(chan struct{}),
	}
}

// Submit records a run for the trigger and queues it on the target's
// cluster. It never blocks on execution. Triggers for other branches
// return ErrBranchIgnored. Descriptors are validated at the manifest
// boundary before they get here.
func (c *Coordinator) Submit(target Target, trigger types.TriggerEvent) (*types.PipelineRun, error) {
	if target.Workload == nil || target.Image == nil {
		return nil, fmt.Errorf("target needs both a workload and an image descriptor")
	}

	if c.config.Branch != "" && trigger.Branch != c.config.Branch {
		c.logger.Info().
			Str("branch", trigger.Branch).
			Str("commit", trigger.CommitID).
			Str("watched", c.config.Branch).
			Msg("Ignoring trigger for unwatched branch")
		return nil, ErrBranchIgnored
	}

	run := types.NewPipelineRun(target.Workload.Cluster, target.Workload.Key(), trigger)
	queued := &queuedRun{run: run, target: target, cancel: make(chan struct{})}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, fmt.Errorf("coordinator stopped")
	}
	// Persist and announce before the run becomes visible to a
	// dispatcher, which starts mutating it as soon as it can
	c.saveRun(run)
	c.broker.Publish(events.ForRun(events.EventRunQueued, run, "commit "+trigger.CommitID))
	c.queues[run.Cluster] = append(c.queues[run.Cluster], queued)
	metrics.QueueDepth.WithLabelValues(run.Cluster).Set(float64(len(c.queues[run.Cluster])))
	if !c.dispatching[run.Cluster] {
		c.dispatching[run.Cluster] = true
		c.wg.Add(1)
		go c.dispatch(run.Cluster)
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("run", run.ID).
		Str("cluster", run.Cluster).
		Str("workload", run.Workload).
		Str("commit", trigger.CommitID).
		Msg("Run queued")

	return run, nil
}

// Cancel stops the run. Queued runs fail immediately; for an executing
// run the current stage finishes and the remaining stages are skipped.
// Finished runs cannot be cancelled.
func (c *Coordinator) Cancel(runID string) error {
	c.mu.Lock()

	if q, ok := c.active[runID]; ok {
		q.requestCancel()
		c.mu.Unlock()
		c.logger.Info().Str("run", runID).Msg("Cancellation requested, current stage will finish")
		return nil
	}

	for cluster, queue := range c.queues {
		for i, q := range queue {
			if q.run.ID != runID {
				continue
			}
			c.queues[cluster] = append(queue[:i], queue[i+1:]...)
			metrics.QueueDepth.WithLabelValues(cluster).Set(float64(len(c.queues[cluster])))
			q.requestCancel()
			run := q.run
			c.mu.Unlock()
			c.finishCancelled(run)
			return nil
		}
	}
	c.mu.Unlock()

	run, err := c.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run.State.Terminal() {
		return fmt.Errorf("run %s already finished", runID)
	}

	// In the store but not in memory: left over from an earlier process
	c.finishCancelled(run)
	return nil
}

// Await blocks until the run reaches a terminal state or the context
// ends, returning the latest persisted record either way.
func (c *Coordinator) Await(ctx context.Context, runID string) (*types.PipelineRun, error) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		run, err := c.store.GetRun(runID)
		if err != nil {
			return nil, err
		}
		if run.State.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// QueueDepth returns how many runs are waiting on the cluster, not
// counting one currently executing.
func (c *Coordinator) QueueDepth(cluster string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[cluster])
}

// Recover fails runs a previous process left unterminated. Engines
// hold no durable state, so interrupted work cannot resume; a new
// trigger is the retry. Returns how many runs were resolved.
func (c *Coordinator) Recover() (int, error) {
	runs, err := c.store.ListRuns()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, run := range runs {
		if run.State.Terminal() {
			continue
		}
		for i := range run.Stages {
			if run.Stages[i].State == types.StageStateRunning {
				run.Stages[i].State = types.StageStateFailed
				run.Stages[i].Error = "interrupted by restart"
				run.Stages[i].FinishedAt = time.Now().UTC()
			}
		}
		c.skipRemaining(run)
		c.setRunState(run, types.RunStateFailed)
		run.Error = "interrupted by restart"
		run.FinishedAt = time.Now().UTC()
		c.saveRun(run)
		c.logger.Warn().Str("run", run.ID).Str("cluster", run.Cluster).Msg("Failed interrupted run")
		recovered++
	}

	return recovered, nil
}

// Stop rejects new submissions and waits for executing runs to finish.
// Queued runs stay pending in the store for Recover to resolve.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

// dispatch drains one cluster's queue, executing runs in FIFO order.
// Started lazily by Submit; exits when the queue empties or on Stop.
func (c *Coordinator) dispatch(cluster string) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.mu.Lock()
			c.dispatching[cluster] = false
			c.mu.Unlock()
			return
		default:
		}

		c.mu.Lock()
		queue := c.queues[cluster]
		if len(queue) == 0 {
			c.dispatching[cluster] = false
			c.mu.Unlock()
			return
		}
		next := queue[0]
		c.queues[cluster] = queue[1:]
		metrics.QueueDepth.WithLabelValues(cluster).Set(float64(len(c.queues[cluster])))
		c.active[next.run.ID] = next
		c.mu.Unlock()

		c.execute(next)

		c.mu.Lock()
		delete(c.active, next.run.ID)
		c.mu.Unlock()
	}
}

// execute drives one run through the stages in order, failing fast on
// the first stage error and checking for cancellation between stages.
func (c *Coordinator) execute(q *queuedRun) {
	run := q.run

	if q.cancelRequested() {
		c.finishCancelled(run)
		return
	}

	c.setRunState(run, types.RunStateRunning)
	run.StartedAt = time.Now().UTC()
	c.saveRun(run)
	c.broker.Publish(events.ForRun(events.EventRunStarted, run, "commit "+run.Trigger.CommitID))
	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	c.logger.Info().
		Str("run", run.ID).
		Str("cluster", run.Cluster).
		Str("commit", run.Trigger.CommitID).
		Msg("Run started")

	var (
		ws   source.Workspace
		img  registry.Image
		cred credentials.Handle
	)
	defer func() {
		if err := ws.Remove(); err != nil {
			c.logger.Warn().Err(err).Str("run", run.ID).Msg("Failed to remove workspace")
		}
	}()

	stages := []struct {
		name types.StageName
		fn   func(ctx context.Context) error
	}{
		{types.StageFetchSource, func(ctx context.Context) error {
			var err error
			ws, err = c.engines.Fetcher.Fetch(ctx, run.Trigger.CommitID)
			return err
		}},
		{types.StageBuildImage, func(ctx context.Context) error {
			var err error
			img, err = c.engines.Builder.Build(ctx, ws)
			return err
		}},
		{types.StagePublishImage, func(ctx context.Context) error {
			target := q.target.Workload.Image.WithTag(artifactTag(run.Trigger.CommitID))
			ref, err := c.engines.Publisher.Publish(ctx, img, target)
			if err != nil {
				return err
			}
			run.Artifact = ref
			return nil
		}},
		{types.StageAcquireCredentials, func(ctx context.Context) error {
			var err error
			cred, err = c.engines.Credentials.Acquire(ctx, run.Cluster)
			return err
		}},
		{types.StageApplyWorkload, func(ctx context.Context) error {
			return c.applyWorkload(ctx, run, q.target, &cred)
		}},
	}

	for _, stage := range stages {
		if q.cancelRequested() {
			c.finishCancelled(run)
			return
		}
		if err := c.runStage(run, stage.name, stage.fn); err != nil {
			c.finishFailed(run, err)
			return
		}
	}

	c.finishSucceeded(run)
}

// runStage executes one stage under its timeout, recording both the
// transition into Running and the terminal outcome.
func (c *Coordinator) runStage(run *types.PipelineRun, name types.StageName, fn func(ctx context.Context) error) error {
	stage := run.Stage(name)
	c.setStageState(run, stage, types.StageStateRunning)
	stage.StartedAt = time.Now().UTC()
	c.saveRun(run)
	c.broker.Publish(events.ForStage(events.EventStageStarted, run, name, ""))

	ctx, cancel := context.WithTimeout(context.Background(), c.config.stageTimeout(name))
	defer cancel()

	timer := metrics.NewTimer()
	err := fn(ctx)
	stage.FinishedAt = time.Now().UTC()

	if err != nil {
		stageErr := &StageError{
			Stage:   name,
			Err:     err,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
		c.setStageState(run, stage, types.StageStateFailed)
		stage.Error = stageErr.Error()
		c.saveRun(run)
		timer.ObserveDurationVec(metrics.StageDuration, string(name), string(types.StageStateFailed))
		c.broker.Publish(events.ForStage(events.EventStageFailed, run, name, stageErr.Error()))
		c.logger.Error().
			Err(err).
			Str("run", run.ID).
			Str("stage", string(name)).
			Bool("timeout", stageErr.Timeout).
			Msg("Stage failed")
		return stageErr
	}

	c.setStageState(run, stage, types.StageStateSucceeded)
	c.saveRun(run)
	timer.ObserveDurationVec(metrics.StageDuration, string(name), string(types.StageStateSucceeded))
	c.broker.Publish(events.ForStage(events.EventStageSucceeded, run, name, ""))
	c.logger.Debug().
		Str("run", run.ID).
		Str("stage", string(name)).
		Dur("took", stage.Duration()).
		Msg("Stage succeeded")
	return nil
}

// applyWorkload hands the published artifact to the cluster. The
// per-cluster lock is held only here, never across earlier stages.
func (c *Coordinator) applyWorkload(ctx context.Context, run *types.PipelineRun, target Target, cred *credentials.Handle) error {
	if run.Artifact.IsZero() {
		return fmt.Errorf("refusing to apply without a published artifact")
	}

	// Earlier stages can outlive a short-lived token. Renew before
	// taking the lock rather than failing the run.
	if cred.Expired(time.Now()) {
		fresh, err := c.engines.Credentials.Acquire(ctx, run.Cluster)
		if err != nil {
			return fmt.Errorf("failed to renew expired credential: %w", err)
		}
		*cred = fresh
		metrics.CredentialRenewalsTotal.Inc()
		c.logger.Info().Str("run", run.ID).Str("cluster", run.Cluster).Msg("Renewed expired credential")
	}

	lock := c.clusterApplyLock(run.Cluster)
	lock.Lock()
	defer lock.Unlock()

	workload := *target.Workload
	workload.Image = run.Artifact

	receipt, err := c.engines.Submitter.Apply(ctx, *cred, &workload)
	if err != nil {
		return err
	}

	metrics.WorkloadsApplied.WithLabelValues(string(receipt.Outcome)).Inc()
	c.broker.Publish(events.ForRun(events.EventWorkloadApplied, run, fmt.Sprintf("%s %s", receipt.Outcome, run.Artifact)))
	return nil
}

func (c *Coordinator) clusterApplyLock(cluster string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.applyLocks[cluster]
	if !ok {
		lock = &sync.Mutex{}
		c.applyLocks[cluster] = lock
	}
	return lock
}

func (c *Coordinator) finishSucceeded(run *types.PipelineRun) {
	c.setRunState(run, types.RunStateSucceeded)
	run.FinishedAt = time.Now().UTC()
	c.saveRun(run)
	metrics.RunsTotal.WithLabelValues(string(types.RunStateSucceeded)).Inc()
	c.broker.Publish(events.ForRun(events.EventRunSucceeded, run, run.Artifact.String()))
	c.logger.Info().
		Str("run", run.ID).
		Str("artifact", run.Artifact.String()).
		Dur("took", run.Duration()).
		Msg("Run succeeded")
}

func (c *Coordinator) finishFailed(run *types.PipelineRun, err error) {
	c.skipRemaining(run)
	c.setRunState(run, types.RunStateFailed)
	run.Error = err.Error()
	run.FinishedAt = time.Now().UTC()
	c.saveRun(run)
	metrics.RunsTotal.WithLabelValues(string(types.RunStateFailed)).Inc()
	c.broker.Publish(events.ForRun(events.EventRunFailed, run, run.Error))
	c.logger.Error().
		Str("run", run.ID).
		Str("error", run.Error).
		Msg("Run failed")
}

func (c *Coordinator) finishCancelled(run *types.PipelineRun) {
	c.skipRemaining(run)
	c.setRunState(run, types.RunStateFailed)
	run.Error = ErrRunCancelled.Error()
	run.FinishedAt = time.Now().UTC()
	c.saveRun(run)
	metrics.RunsTotal.WithLabelValues(string(types.RunStateFailed)).Inc()
	c.broker.Publish(events.ForRun(events.EventRunCancelled, run, run.Error))
	c.logger.Info().Str("run", run.ID).Msg("Run cancelled")
}

// skipRemaining marks every still-pending stage skipped.
func (c *Coordinator) skipRemaining(run *types.PipelineRun) {
	for i := range run.Stages {
		if run.Stages[i].State == types.StageStatePending {
			run.Stages[i].State = types.StageStateSkipped
		}
	}
}

func (c *Coordinator) setRunState(run *types.PipelineRun, to types.RunState) {
	if !run.State.CanTransition(to) {
		c.logger.Error().
			Str("run", run.ID).
			Str("from", string(run.State)).
			Str("to", string(to)).
			Msg("Illegal run state transition")
	}
	run.State = to
}

func (c *Coordinator) setStageState(run *types.PipelineRun, stage *types.StageStatus, to types.StageState) {
	if !stage.State.CanTransition(to) {
		c.logger.Error().
			Str("run", run.ID).
			Str("stage", string(stage.Name)).
			Str("from", string(stage.State)).
			Str("to", string(to)).
			Msg("Illegal stage state transition")
	}
	stage.State = to
}

func (c *Coordinator) saveRun(run *types.PipelineRun) {
	if err := c.store.SaveRun(run); err != nil {
		c.logger.Error().Err(err).Str("run", run.ID).Msg("Failed to persist run")
	}
}
