/*
Package pipeline coordinates delivery runs from trigger to applied
workload.

A run moves through five strictly ordered stages: fetch-source,
build-image, publish-image, acquire-credentials, apply-workload. The
first failing stage ends the run; later stages are skipped, never
attempted. Each cluster executes at most one run at a time and queues
the rest FIFO, while independent clusters proceed in parallel.

# Architecture

	trigger ──▶ Submit ──▶ per-cluster FIFO queue
	                              │
	                       dispatch goroutine
	                       (lazy, one per busy cluster)
	                              │
	        ┌─────────────────────▼─────────────────────┐
	        │ fetch ▶ build ▶ publish ▶ creds ▶ apply   │
	        │ Fetcher Builder Publisher Source Submitter│
	        └─────────────────────┬─────────────────────┘
	                              │
	              store (bbolt) + events + metrics

Every stage runs under its own timeout; a missed deadline is a stage
failure carrying the stage name. Cancellation lands between stages, so
a running stage always finishes before the run settles as failed. The
per-cluster apply lock is held only while the submitter is applying,
never across the earlier stages.

# Usage

	coord := pipeline.NewCoordinator(pipeline.Config{Branch: "main"}, pipeline.Engines{
		Fetcher:     source.NewGitFetcher(remote, workDir),
		Builder:     registry.NewCraneBuilder(imageDesc),
		Publisher:   registry.NewRemotePublisher(),
		Credentials: credentials.NewStaticSource(15 * time.Minute),
		Submitter:   kube.NewSubmitter(server),
	}, store, broker)
	defer coord.Stop()

	run, err := coord.Submit(pipeline.Target{Workload: wd, Image: img}, trigger)
	if err != nil {
		return err
	}
	run, err = coord.Await(ctx, run.ID)

# Integration Points

This package integrates with:

  - pkg/source, pkg/registry, pkg/credentials, pkg/orchestrator: the
    stage engines
  - pkg/storage: every state transition is persisted
  - pkg/events: queued/started/succeeded/failed lifecycle events
  - pkg/metrics: run counters, stage duration histograms, queue depth
*/
package pipeline
