/*
Package client provides an HTTP client for the slipway status API.

The bolt store takes an exclusive file lock, so a second slipway
process cannot read run state from disk while a pipeline is running.
Commands point the client at the running process's --status-addr
instead and read the same state over HTTP.

# Architecture

	┌───────────── CLIENT ──────────────┐        ┌──────────── SERVER ─────────────┐
	│                                   │        │                                 │
	│  Client                           │  HTTP  │  pkg/api.Server                 │
	│    GetRun(id)            ─────────┼───────▶│  GET /v1/runs/{id}              │
	│    ListRuns()            ─────────┼───────▶│  GET /v1/runs                   │
	│    ListRunsByCluster()   ─────────┼───────▶│  GET /v1/runs?cluster=          │
	│    ListWorkloads()       ─────────┼───────▶│  GET /v1/workloads              │
	│    GetWorkload(ns, name) ─────────┼───────▶│  GET /v1/workloads/{ns}/{name}  │
	│    ListTopologies()      ─────────┼───────▶│  GET /v1/topologies             │
	│    GetTopology(name)     ─────────┼───────▶│  GET /v1/topologies/{name}      │
	│    Health()              ─────────┼───────▶│  GET /healthz                   │
	│                                   │        │                                 │
	└───────────────────────────────────┘        └─────────────────────────────────┘

Every call carries a ten second deadline. Responses decode into the
same pkg/types structs the store holds, so callers switch between
direct store access and the API without translation.

# Usage

	c := client.New("127.0.0.1:9090")
	defer c.Close()

	runs, err := c.ListRuns()
	if err != nil {
		return err
	}

A missing run wraps storage.ErrNotFound, matching the store's own
lookup behavior:

	if _, err := c.GetRun(id); errors.Is(err, storage.ErrNotFound) {
		// unknown run
	}

# Integration Points

This package integrates with:

  - pkg/api: consumes its read-only routes
  - pkg/types: decodes responses into the shared descriptor structs
  - cmd/slipway: the status command's --addr flag selects this client
*/
package client
