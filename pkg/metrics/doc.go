/*
Package metrics provides Prometheus metrics and health checking for slipway.

Metrics are package-level collectors registered at init, so any package
can record without carrying a registry handle. Health is a process-wide
component checker feeding the /healthz and /readyz endpoints.

# Architecture

	┌──────────────────── METRICS LAYER ────────────────────┐
	│                                                       │
	│  ┌──────────────┐  ┌──────────────┐  ┌─────────────┐  │
	│  │ Pipeline     │  │ Collector    │  │ Health      │  │
	│  │ counters and │  │ polls store  │  │ component   │  │
	│  │ histograms   │  │ every 15s    │  │ registry    │  │
	│  └──────┬───────┘  └──────┬───────┘  └──────┬──────┘  │
	│         │                 │                 │         │
	│  ┌──────▼─────────────────▼───────┐  ┌──────▼──────┐  │
	│  │ Prometheus registry            │  │ /healthz    │  │
	│  │ served at /metrics             │  │ /readyz     │  │
	│  └────────────────────────────────┘  └─────────────┘  │
	└───────────────────────────────────────────────────────┘

# Usage

Recording pipeline activity:

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	timer := metrics.NewTimer()
	// ... run the stage ...
	timer.ObserveDurationVec(metrics.StageDuration, string(stage), string(state))

	metrics.RunsTotal.WithLabelValues(string(run.State)).Inc()

Background gauge collection from the store:

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

Health checking:

	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("coordinator", true, "")

	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/pipeline: run and stage counters, queue depth, timers
  - pkg/validate: violation counters by descriptor kind
  - pkg/api: serves /metrics, /healthz, and /readyz
  - pkg/storage: the Collector polls stored object counts

Readiness requires the storage and coordinator components to report
healthy. Liveness only requires the process to respond.
*/
package metrics
