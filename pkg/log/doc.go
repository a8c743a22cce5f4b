/*
Package log provides structured logging for slipway using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. All logs include
timestamps and support filtering by severity level.

# Architecture

	┌─────────────────── LOGGING SYSTEM ────────────────────┐
	│                                                         │
	│  ┌──────────────────────────────────────────┐         │
	│  │            Global Logger                  │         │
	│  │  - Zerolog instance                       │         │
	│  │  - Initialized via log.Init()             │         │
	│  │  - Thread-safe for concurrent use         │         │
	│  └──────────────────┬───────────────────────┘         │
	│                     │                                   │
	│  ┌──────────────────▼───────────────────────┐         │
	│  │         Context Loggers                   │         │
	│  │  - WithComponent("pipeline")              │         │
	│  │  - WithRunID("run-3f2c1a9b")              │         │
	│  │  - WithCluster("prod-east")               │         │
	│  │  - WithWorkload("payments/api")           │         │
	│  └──────────────────┬───────────────────────┘         │
	│                     │                                   │
	│  ┌──────────────────▼───────────────────────┐         │
	│  │            Log Output                     │         │
	│  │  JSON:    {"level":"info","component":    │         │
	│  │            "pipeline","run_id":"…",       │         │
	│  │            "message":"stage succeeded"}   │         │
	│  │  Console: 10:30AM INF stage succeeded     │         │
	│  │            component=pipeline run_id=…    │         │
	│  └──────────────────────────────────────────┘         │
	└─────────────────────────────────────────────────────┘

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component loggers:

	coordLog := log.WithComponent("pipeline")
	coordLog.Info().
		Str("run_id", run.ID).
		Str("stage", string(stage.Name)).
		Msg("stage succeeded")

Context logger helpers:

	// Run-scoped logs
	runLog := log.WithRunID("3f2c1a9b-7de4-4a11-902d-6c50f4f7a815")
	runLog.Info().Msg("Run queued")

	// Cluster-scoped logs
	clusterLog := log.WithCluster("prod-east")
	clusterLog.Info().Msg("Topology rendered")

	// Workload-scoped logs
	wlLog := log.WithWorkload("payments/checkout")
	wlLog.Info().Msg("Workload applied")

Error logging:

	log.Logger.Error().
		Err(err).
		Str("cluster", cluster).
		Msg("workload apply failed")

# Integration Points

This package integrates with:

  - pkg/pipeline: run and stage lifecycle logging
  - pkg/orchestrator: workload submission logging
  - pkg/provision: topology rendering logging
  - pkg/api: status server request logging
  - cmd/slipway: CLI-level initialization

# Best Practices

Do:
  - Use Info level in production
  - Use structured fields for queryable data (.Str, .Int, .Err)
  - Create component-specific loggers once per component
  - Include run, cluster, and workload context on pipeline logs

Don't:
  - Log credential handles or tokens
  - Use Debug level in production
  - Concatenate values into the message string
*/
package log
