/*
Package storage provides persistent state management for slipway using BoltDB.

The storage package wraps an embedded BoltDB database behind the Store
interface so the pipeline, the status server, and the CLI share one
durable view of descriptors and runs without an external database.

# Architecture

	┌──────────────────── STORAGE LAYER ────────────────────┐
	│                                                       │
	│  ┌──────────────────────────────────────────┐         │
	│  │           Store Interface                │         │
	│  │  SaveRun / GetRun / ListRuns / …         │         │
	│  │  SaveTopology / SaveWorkload / …         │         │
	│  └──────────────────┬───────────────────────┘         │
	│                     │                                 │
	│  ┌──────────────────▼───────────────────────┐         │
	│  │            BoltStore                     │         │
	│  │  - Single-file embedded database         │         │
	│  │  - JSON-encoded values                   │         │
	│  │  - ACID transactions                     │         │
	│  └──────────────────┬───────────────────────┘         │
	│                     │                                 │
	│  ┌──────────────────▼───────────────────────┐         │
	│  │              Buckets                     │         │
	│  │  runs        key: run ID                 │         │
	│  │  topologies  key: cluster name           │         │
	│  │  workloads   key: namespace/name         │         │
	│  └──────────────────────────────────────────┘         │
	└───────────────────────────────────────────────────────┘

# Usage

	store, err := storage.NewBoltStore("/var/lib/slipway")
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveRun(run); err != nil {
		return err
	}

	runs, err := store.ListRunsByCluster("prod-east")

Lookups that miss wrap storage.ErrNotFound:

	if _, err := store.GetRun(id); errors.Is(err, storage.ErrNotFound) {
		// unknown run
	}

# Integration Points

This package integrates with:

  - pkg/pipeline: persists every run state transition
  - pkg/api: serves run history over HTTP
  - cmd/slipway: status and run commands read from the same file

# Consistency Notes

Writes go through BoltDB update transactions, so a run record is
either fully written or not written at all. Saves are upserts; the
pipeline coordinator is the only writer for runs, which keeps
last-write-wins semantics safe. ListRuns sorts newest first because
every caller wants recent history.
*/
package storage
