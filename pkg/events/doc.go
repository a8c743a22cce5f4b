/*
Package events provides pub/sub distribution of pipeline lifecycle events.

The events package implements a lightweight in-process broker. The
pipeline coordinator publishes an event for every run and stage
transition; the CLI subscribes to stream progress without polling the
store.

# Event Types

Run lifecycle:

	run.queued     trigger accepted, run waiting for its cluster
	run.started    run picked up by the cluster dispatcher
	run.succeeded  all five stages succeeded
	run.failed     a stage failed or timed out
	run.cancelled  run cancelled while pending or between stages

Stage lifecycle:

	stage.started / stage.succeeded / stage.failed

Side effects:

	workload.applied    orchestrator accepted a submission
	topology.rendered   provisioning input rendered for a topology

# Usage

	broker := events.NewBroker()

	sub := broker.Subscribe(events.EventRunFailed)
	defer sub.Close()

	go func() {
		for e := range sub.C {
			fmt.Println(e.RunID, e.Message)
		}
	}()

	broker.Publish(events.ForRun(events.EventRunQueued, run, "queued"))

# Delivery Semantics

Publishing is non-blocking: each subscriber has a buffered channel and
a full buffer drops the event for that subscriber only. Events are a
progress surface, not a durable log; the store remains the source of
truth for run state.
*/
package events
