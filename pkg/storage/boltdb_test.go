package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRunRoundTrip tests saving and loading a pipeline run
func TestRunRoundTrip(t *testing.T) {
	store := newTestStore(t)

	run := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{
		CommitID: "3f2c1a9b7d4e",
		Branch:   "main",
	})
	run.Stage(types.StageFetchSource).State = types.StageStateSucceeded

	require.NoError(t, store.SaveRun(run))

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, "prod-east", loaded.Cluster)
	assert.Equal(t, "payments/api", loaded.Workload)
	assert.Equal(t, "3f2c1a9b7d4e", loaded.Trigger.CommitID)
	assert.Equal(t, types.StageStateSucceeded, loaded.Stage(types.StageFetchSource).State)
	assert.Len(t, loaded.Stages, 5)
}

// TestRunUpdateIsUpsert tests that saving twice overwrites
func TestRunUpdateIsUpsert(t *testing.T) {
	store := newTestStore(t)

	run := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{})
	require.NoError(t, store.SaveRun(run))

	run.State = types.RunStateFailed
	run.Error = "stage build-image failed"
	require.NoError(t, store.SaveRun(run))

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStateFailed, loaded.State)
	assert.Equal(t, "stage build-image failed", loaded.Error)
}

// TestGetRunNotFound tests the miss error
func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestListRunsNewestFirst tests run ordering
func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	old := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{})
	old.CreatedAt = time.Now().Add(-time.Hour)
	recent := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{})

	require.NoError(t, store.SaveRun(old))
	require.NoError(t, store.SaveRun(recent))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, recent.ID, runs[0].ID)
	assert.Equal(t, old.ID, runs[1].ID)
}

// TestListRunsByCluster tests cluster filtering
func TestListRunsByCluster(t *testing.T) {
	store := newTestStore(t)

	east := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{})
	west := types.NewPipelineRun("prod-west", "payments/api", types.TriggerEvent{})
	require.NoError(t, store.SaveRun(east))
	require.NoError(t, store.SaveRun(west))

	runs, err := store.ListRunsByCluster("prod-east")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, east.ID, runs[0].ID)
}

// TestTopologyRoundTrip tests topology persistence
func TestTopologyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	ct := &types.ClusterTopology{
		Name:                "prod-east",
		ControlPlaneVersion: "1.31",
		Network: types.NetworkPlacement{
			VPC:     "vpc-1",
			Subnets: []string{"subnet-a", "subnet-b"},
		},
		NodeGroup: types.NodeGroup{InstanceClass: "m5.large", MinSize: 1, DesiredSize: 2, MaxSize: 4},
	}
	require.NoError(t, store.SaveTopology(ct))

	loaded, err := store.GetTopology("prod-east")
	require.NoError(t, err)
	assert.Equal(t, ct, loaded)

	tops, err := store.ListTopologies()
	require.NoError(t, err)
	assert.Len(t, tops, 1)

	require.NoError(t, store.DeleteTopology("prod-east"))
	_, err = store.GetTopology("prod-east")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestWorkloadRoundTrip tests workload persistence keyed by namespace
func TestWorkloadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	wd := &types.WorkloadDescriptor{
		Name:          "api",
		Namespace:     "payments",
		Cluster:       "prod-east",
		Image:         types.ArtifactRef{Registry: "r.io", Repository: "payments/api", Tag: "v1"},
		Replicas:      2,
		ContainerPort: 8080,
		Resources: types.Resources{
			CPURequest: types.MustQuantity("100m"),
			CPULimit:   types.MustQuantity("500m"),
		},
		Exposure: types.ExposureInternal,
	}
	require.NoError(t, store.SaveWorkload(wd))

	loaded, err := store.GetWorkload("payments", "api")
	require.NoError(t, err)
	assert.True(t, wd.Equal(loaded))

	// Same name in another namespace is a distinct record.
	_, err = store.GetWorkload("default", "api")
	assert.True(t, errors.Is(err, ErrNotFound))

	wds, err := store.ListWorkloads()
	require.NoError(t, err)
	assert.Len(t, wds, 1)

	require.NoError(t, store.DeleteWorkload("payments", "api"))
	_, err = store.GetWorkload("payments", "api")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestReopenPersistence tests that data survives close and reopen
func TestReopenPersistence(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)

	run := types.NewPipelineRun("prod-east", "payments/api", types.TriggerEvent{CommitID: "abc"})
	require.NoError(t, store.SaveRun(run))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.Trigger.CommitID)
}
