package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

// TestPublishSubscribe tests basic event delivery
func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()
	defer sub.Close()

	broker.Publish(Event{Type: EventRunQueued, RunID: "run-1", Cluster: "prod-east"})

	select {
	case e := <-sub.C:
		assert.Equal(t, EventRunQueued, e.Type)
		assert.Equal(t, "run-1", e.RunID)
		assert.False(t, e.Timestamp.IsZero(), "timestamp must be stamped")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

// TestSubscribeFilter tests type-filtered subscriptions
func TestSubscribeFilter(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(EventRunFailed)
	defer sub.Close()

	broker.Publish(Event{Type: EventRunQueued, RunID: "run-1"})
	broker.Publish(Event{Type: EventRunFailed, RunID: "run-1"})

	select {
	case e := <-sub.C:
		assert.Equal(t, EventRunFailed, e.Type)
	case <-time.After(time.Second):
		t.Fatal("filtered event not delivered")
	}

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected extra event: %v", e.Type)
	default:
	}
}

// TestUnsubscribe tests that closed subscriptions stop receiving
func TestUnsubscribe(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()
	assert.Equal(t, 1, broker.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, broker.SubscriberCount())

	// Publishing after close must not panic.
	broker.Publish(Event{Type: EventRunStarted})

	// Close is idempotent.
	sub.Close()
}

// TestSlowSubscriberDoesNotBlock tests the drop-on-full policy
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			broker.Publish(Event{Type: EventStageStarted, RunID: "run-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

// TestEventHelpers tests the run and stage constructors
func TestEventHelpers(t *testing.T) {
	run := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{})

	e := ForRun(EventRunStarted, run, "run started")
	assert.Equal(t, run.ID, e.RunID)
	assert.Equal(t, "prod-east", e.Cluster)
	assert.Equal(t, "payments/api", e.Workload)

	se := ForStage(EventStageFailed, run, types.StagePublishImage, "boom")
	assert.Equal(t, types.StagePublishImage, se.Stage)
	assert.Equal(t, run.ID, se.RunID)
}

// TestMultipleSubscribers tests fan-out
func TestMultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	a := broker.Subscribe()
	b := broker.Subscribe()
	defer a.Close()
	defer b.Close()

	broker.Publish(Event{Type: EventWorkloadApplied, RunID: "run-9"})

	for _, sub := range []*Subscription{a, b} {
		select {
		case e := <-sub.C:
			require.Equal(t, "run-9", e.RunID)
		case <-time.After(time.Second):
			t.Fatal("fan-out missed a subscriber")
		}
	}
}
