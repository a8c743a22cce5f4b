package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestArtifactRefString tests pullable reference rendering
func TestArtifactRefString(t *testing.T) {
	ref := ArtifactRef{Registry: "registry.example.com", Repository: "payments/api", Tag: "v1.4.2"}
	assert.Equal(t, "registry.example.com/payments/api:v1.4.2", ref.String())
}

// TestArtifactRefIsZero tests missing-component detection
func TestArtifactRefIsZero(t *testing.T) {
	tests := []struct {
		name string
		ref  ArtifactRef
		zero bool
	}{
		{name: "complete", ref: ArtifactRef{Registry: "r.io", Repository: "a/b", Tag: "t"}, zero: false},
		{name: "missing registry", ref: ArtifactRef{Repository: "a/b", Tag: "t"}, zero: true},
		{name: "missing repository", ref: ArtifactRef{Registry: "r.io", Tag: "t"}, zero: true},
		{name: "missing tag", ref: ArtifactRef{Registry: "r.io", Repository: "a/b"}, zero: true},
		{name: "empty", ref: ArtifactRef{}, zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.zero, tt.ref.IsZero())
		})
	}
}

// TestArtifactRefWithTag tests that retagging copies the reference
func TestArtifactRefWithTag(t *testing.T) {
	ref := ArtifactRef{Registry: "r.io", Repository: "a/b", Tag: "latest"}
	pinned := ref.WithTag("3f2c1a9b")

	assert.Equal(t, "3f2c1a9b", pinned.Tag)
	assert.Equal(t, "latest", ref.Tag, "original must not change")
}

// TestWorkloadDescriptorEqual tests value-level descriptor comparison
func TestWorkloadDescriptorEqual(t *testing.T) {
	base := func() *WorkloadDescriptor {
		return &WorkloadDescriptor{
			Name:          "api",
			Namespace:     "payments",
			Cluster:       "prod-east",
			Image:         ArtifactRef{Registry: "r.io", Repository: "payments/api", Tag: "abc123"},
			Replicas:      3,
			ContainerPort: 8080,
			Resources: Resources{
				CPURequest:    MustQuantity("500m"),
				CPULimit:      MustQuantity("1"),
				MemoryRequest: MustQuantity("256Mi"),
				MemoryLimit:   MustQuantity("512Mi"),
			},
			Exposure: ExposureInternal,
		}
	}

	t.Run("identical descriptors are equal", func(t *testing.T) {
		assert.True(t, base().Equal(base()))
	})

	t.Run("quantities compare by value", func(t *testing.T) {
		a := base()
		b := base()
		b.Resources.CPULimit = MustQuantity("1000m")
		assert.True(t, a.Equal(b))
	})

	t.Run("replica change is a difference", func(t *testing.T) {
		b := base()
		b.Replicas = 4
		assert.False(t, base().Equal(b))
	})

	t.Run("image change is a difference", func(t *testing.T) {
		b := base()
		b.Image.Tag = "def456"
		assert.False(t, base().Equal(b))
	})

	t.Run("nil is never equal", func(t *testing.T) {
		assert.False(t, base().Equal(nil))
	})
}

// TestWorkloadKey tests namespace/name identity
func TestWorkloadKey(t *testing.T) {
	wd := &WorkloadDescriptor{Name: "api", Namespace: "payments"}
	assert.Equal(t, "payments/api", wd.Key())
}

// TestStageStateTransitions tests the stage state machine
func TestStageStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    StageState
		to      StageState
		allowed bool
	}{
		{name: "pending to running", from: StageStatePending, to: StageStateRunning, allowed: true},
		{name: "pending to skipped", from: StageStatePending, to: StageStateSkipped, allowed: true},
		{name: "pending to succeeded", from: StageStatePending, to: StageStateSucceeded, allowed: false},
		{name: "pending to failed", from: StageStatePending, to: StageStateFailed, allowed: false},
		{name: "running to succeeded", from: StageStateRunning, to: StageStateSucceeded, allowed: true},
		{name: "running to failed", from: StageStateRunning, to: StageStateFailed, allowed: true},
		{name: "running to skipped", from: StageStateRunning, to: StageStateSkipped, allowed: false},
		{name: "succeeded is terminal", from: StageStateSucceeded, to: StageStateRunning, allowed: false},
		{name: "failed is terminal", from: StageStateFailed, to: StageStateRunning, allowed: false},
		{name: "skipped is terminal", from: StageStateSkipped, to: StageStateRunning, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

// TestStageStateTerminal tests terminal state classification
func TestStageStateTerminal(t *testing.T) {
	assert.False(t, StageStatePending.Terminal())
	assert.False(t, StageStateRunning.Terminal())
	assert.True(t, StageStateSucceeded.Terminal())
	assert.True(t, StageStateFailed.Terminal())
	assert.True(t, StageStateSkipped.Terminal())
}

// TestRunStateTransitions tests the run state machine
func TestRunStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    RunState
		to      RunState
		allowed bool
	}{
		{name: "pending to running", from: RunStatePending, to: RunStateRunning, allowed: true},
		{name: "pending to failed on cancel", from: RunStatePending, to: RunStateFailed, allowed: true},
		{name: "pending to succeeded", from: RunStatePending, to: RunStateSucceeded, allowed: false},
		{name: "running to succeeded", from: RunStateRunning, to: RunStateSucceeded, allowed: true},
		{name: "running to failed", from: RunStateRunning, to: RunStateFailed, allowed: true},
		{name: "succeeded is terminal", from: RunStateSucceeded, to: RunStateRunning, allowed: false},
		{name: "failed is terminal", from: RunStateFailed, to: RunStateRunning, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

// TestNewPipelineRun tests freshly created run shape
func TestNewPipelineRun(t *testing.T) {
	trigger := TriggerEvent{CommitID: "3f2c1a9b7d4e", Branch: "main"}
	run := NewPipelineRun("prod-east", "payments/api", trigger)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "prod-east", run.Cluster)
	assert.Equal(t, "payments/api", run.Workload)
	assert.Equal(t, RunStatePending, run.State)
	assert.False(t, run.CreatedAt.IsZero())

	require.Len(t, run.Stages, 5)
	for i, name := range StageOrder {
		assert.Equal(t, name, run.Stages[i].Name)
		assert.Equal(t, StageStatePending, run.Stages[i].State)
	}
}

// TestPipelineRunStageLookup tests stage access by name
func TestPipelineRunStageLookup(t *testing.T) {
	run := NewPipelineRun("prod-east", "payments/api", TriggerEvent{})

	st := run.Stage(StagePublishImage)
	require.NotNil(t, st)
	assert.Equal(t, StagePublishImage, st.Name)

	st.State = StageStateRunning
	assert.Equal(t, StageStateRunning, run.Stage(StagePublishImage).State, "lookup must return a live pointer")

	assert.Nil(t, run.Stage(StageName("no-such-stage")))
}

// TestPipelineRunFirstFailure tests failed stage lookup
func TestPipelineRunFirstFailure(t *testing.T) {
	run := NewPipelineRun("prod-east", "payments/api", TriggerEvent{})
	assert.Nil(t, run.FirstFailure())

	run.Stage(StageBuildImage).State = StageStateFailed
	run.Stage(StagePublishImage).State = StageStateSkipped

	failed := run.FirstFailure()
	require.NotNil(t, failed)
	assert.Equal(t, StageBuildImage, failed.Name)
}

// TestQuantityYAMLRoundTrip tests YAML parsing and rendering
func TestQuantityYAMLRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "millicores", input: "500m", want: "500m"},
		{name: "whole cores", input: "2", want: "2"},
		{name: "mebibytes", input: "512Mi", want: "512Mi"},
		{name: "gibibytes", input: "1Gi", want: "1Gi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, yaml.Unmarshal([]byte(tt.input), &q))
			assert.Equal(t, tt.want, q.String())

			out, err := yaml.Marshal(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", string(out))
		})
	}
}

// TestQuantityYAMLInvalid tests that malformed quantities are rejected
func TestQuantityYAMLInvalid(t *testing.T) {
	var q Quantity
	err := yaml.Unmarshal([]byte("lots"), &q)
	assert.Error(t, err)
}

// TestQuantityJSONRoundTrip tests the storage encoding path
func TestQuantityJSONRoundTrip(t *testing.T) {
	res := Resources{
		CPURequest:    MustQuantity("250m"),
		CPULimit:      MustQuantity("1"),
		MemoryRequest: MustQuantity("128Mi"),
		MemoryLimit:   MustQuantity("256Mi"),
	}

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var back Resources
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, res.Equal(back))
}
