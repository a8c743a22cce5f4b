package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Fake records submissions and mimics the engine's idempotency: a
// descriptor equal to the last accepted one comes back Unchanged.
type Fake struct {
	// Err, when set, fails every Apply.
	Err error
	// Delay stretches each Apply, for exercising in-flight behavior.
	Delay time.Duration

	mu      sync.Mutex
	applied map[string]*types.WorkloadDescriptor
	calls   int
	creds   []credentials.Handle
}

// NewFake creates an empty recording engine.
func NewFake() *Fake {
	return &Fake{applied: make(map[string]*types.WorkloadDescriptor)}
}

// Apply records the submission and answers per the idempotency rule.
func (f *Fake) Apply(ctx context.Context, cred credentials.Handle, wd *types.WorkloadDescriptor) (Receipt, error) {
	if f.Err != nil {
		return Receipt{}, f.Err
	}

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.creds = append(f.creds, cred)

	if prev, exists := f.applied[wd.Key()]; exists && prev.Equal(wd) {
		return Receipt{Outcome: OutcomeUnchanged}, nil
	}

	clone := *wd
	f.applied[wd.Key()] = &clone

	return Receipt{Outcome: OutcomeAccepted, ApplyID: fmt.Sprintf("apply-%d", f.calls)}, nil
}

// Calls returns how many times Apply ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Applied returns the accepted descriptor for namespace/name, or nil.
func (f *Fake) Applied(key string) *types.WorkloadDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied[key]
}

// Credentials returns the handles passed to Apply, in call order.
func (f *Fake) Credentials() []credentials.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]credentials.Handle(nil), f.creds...)
}
