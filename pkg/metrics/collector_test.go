package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestCollectorRunMetrics tests that run gauges reflect stored runs
func TestCollectorRunMetrics(t *testing.T) {
	store := newTestStore(t)

	running := types.NewPipelineRun("prod-east", "payments/checkout", types.TriggerEvent{})
	running.State = types.RunStateRunning
	if err := store.SaveRun(running); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	for i := 0; i < 2; i++ {
		done := types.NewPipelineRun("prod-east", "payments/checkout", types.TriggerEvent{})
		done.State = types.RunStateSucceeded
		if err := store.SaveRun(done); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	collector := NewCollector(store)
	collector.collect()

	if got := testutil.ToFloat64(RunsStored.WithLabelValues("running")); got != 1 {
		t.Errorf("expected 1 running run, got %v", got)
	}

	if got := testutil.ToFloat64(RunsStored.WithLabelValues("succeeded")); got != 2 {
		t.Errorf("expected 2 succeeded runs, got %v", got)
	}

	if got := testutil.ToFloat64(RunsStored.WithLabelValues("failed")); got != 0 {
		t.Errorf("expected 0 failed runs, got %v", got)
	}
}

// TestCollectorDescriptorMetrics tests topology and workload totals
func TestCollectorDescriptorMetrics(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveTopology(&types.ClusterTopology{Name: "prod-east"}); err != nil {
		t.Fatalf("failed to save topology: %v", err)
	}

	wd := &types.WorkloadDescriptor{Name: "checkout", Namespace: "payments"}
	if err := store.SaveWorkload(wd); err != nil {
		t.Fatalf("failed to save workload: %v", err)
	}

	collector := NewCollector(store)
	collector.collect()

	if got := testutil.ToFloat64(TopologiesTotal); got != 1 {
		t.Errorf("expected 1 topology, got %v", got)
	}

	if got := testutil.ToFloat64(WorkloadsTotal); got != 1 {
		t.Errorf("expected 1 workload, got %v", got)
	}
}

// TestCollectorStartStop tests the collection loop lifecycle
func TestCollectorStartStop(t *testing.T) {
	store := newTestStore(t)

	collector := NewCollector(store)
	collector.Start()
	collector.Stop()
}
