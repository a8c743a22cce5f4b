package provision

import (
	"context"
	"sync"

	"github.com/slipway-sh/slipway/pkg/types"
)

// FakeProvisioner records topology submissions for tests.
type FakeProvisioner struct {
	mu       sync.Mutex
	applies  []*types.ClusterTopology
	destroys []string

	// Err, when set, fails every call.
	Err error
}

// NewFakeProvisioner creates an empty recording provisioner.
func NewFakeProvisioner() *FakeProvisioner {
	return &FakeProvisioner{}
}

// Apply records the topology and reports it accepted.
func (f *FakeProvisioner) Apply(ctx context.Context, ct *types.ClusterTopology) (Receipt, error) {
	if f.Err != nil {
		return Receipt{}, f.Err
	}

	f.mu.Lock()
	f.applies = append(f.applies, ct)
	f.mu.Unlock()

	return Receipt{Outcome: OutcomeAccepted, ApplyID: "fake"}, nil
}

// Destroy records the cluster name and reports it accepted.
func (f *FakeProvisioner) Destroy(ctx context.Context, cluster string) (Receipt, error) {
	if f.Err != nil {
		return Receipt{}, f.Err
	}

	f.mu.Lock()
	f.destroys = append(f.destroys, cluster)
	f.mu.Unlock()

	return Receipt{Outcome: OutcomeAccepted, ApplyID: "fake"}, nil
}

// Applies returns the recorded topologies in submission order.
func (f *FakeProvisioner) Applies() []*types.ClusterTopology {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.ClusterTopology(nil), f.applies...)
}

// Destroys returns the recorded cluster names in submission order.
func (f *FakeProvisioner) Destroys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.destroys...)
}
