/*
Package api serves slipway's read-only status surface over HTTP.

The server reports what the coordinator has done; it never accepts
mutations. Submitting topologies, workloads, and triggers happens
through the CLI, which drives the coordinator in process.

# Architecture

	┌──────────────────── STATUS API ────────────────────┐
	│                                                    │
	│  /v1/runs                list runs (newest first)  │
	│  /v1/runs/{id}           one run with stage detail │
	│  /v1/workloads           stored workloads          │
	│  /v1/workloads/{ns}/{n}  one workload              │
	│  /v1/topologies          stored topologies         │
	│  /v1/topologies/{name}   one topology              │
	│                                                    │
	│  /healthz /readyz /livez   pkg/metrics health      │
	│  /metrics                  Prometheus exposition   │
	│                                                    │
	│             reads ──▶ pkg/storage (bbolt)          │
	└────────────────────────────────────────────────────┘

Every /v1 request is counted and timed into the slipway_api_* metrics
with a logical method name, so dashboards see ListRuns rather than URL
paths.

# Usage

	srv := api.NewServer(store)
	go func() {
		if err := srv.Start(":8080"); err != nil {
			log.Error().Err(err).Msg("status API failed")
		}
	}()
	defer srv.Stop()

# Integration Points

This package integrates with:

  - pkg/storage: all run and descriptor reads
  - pkg/metrics: health handlers, /metrics, request instrumentation
  - cmd/slipway: started by the run command's --status-addr flag
*/
package api
