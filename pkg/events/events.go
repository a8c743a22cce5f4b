package events

import (
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventRunQueued    EventType = "run.queued"
	EventRunStarted   EventType = "run.started"
	EventRunSucceeded EventType = "run.succeeded"
	EventRunFailed    EventType = "run.failed"
	EventRunCancelled EventType = "run.cancelled"

	EventStageStarted   EventType = "stage.started"
	EventStageSucceeded EventType = "stage.succeeded"
	EventStageFailed    EventType = "stage.failed"

	EventWorkloadApplied  EventType = "workload.applied"
	EventTopologyRendered EventType = "topology.rendered"
)

// Event describes one observable pipeline occurrence
type Event struct {
	Type      EventType       `json:"type"`
	RunID     string          `json:"runId,omitempty"`
	Cluster   string          `json:"cluster,omitempty"`
	Workload  string          `json:"workload,omitempty"`
	Stage     types.StageName `json:"stage,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ForRun builds an event carrying a run's identity fields.
func ForRun(t EventType, run *types.PipelineRun, msg string) Event {
	return Event{
		Type:     t,
		RunID:    run.ID,
		Cluster:  run.Cluster,
		Workload: run.Workload,
		Message:  msg,
	}
}

// ForStage builds an event for one stage of a run.
func ForStage(t EventType, run *types.PipelineRun, stage types.StageName, msg string) Event {
	e := ForRun(t, run, msg)
	e.Stage = stage
	return e
}

// Subscription receives events on C until Close is called. Slow
// subscribers lose events rather than stalling publishers.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	filter map[EventType]bool
	broker *Broker
	once   sync.Once
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

func (s *Subscription) wants(t EventType) bool {
	return len(s.filter) == 0 || s.filter[t]
}

// Broker fans events out to subscribers. Publishing never blocks.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Subscription]bool
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]bool)}
}

// Subscribe registers interest in the given event types. With no
// types, every event is delivered.
func (b *Broker) Subscribe(filter ...EventType) *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, 64),
		broker: b,
	}
	sub.C = sub.ch
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, t := range filter {
			sub.filter[t] = true
		}
	}

	b.mu.Lock()
	b.subs[sub] = true
	b.mu.Unlock()
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers the event to every matching subscriber. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
