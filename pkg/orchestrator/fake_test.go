package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/types"
)

func testWorkload() *types.WorkloadDescriptor {
	return &types.WorkloadDescriptor{
		Name:          "checkout",
		Namespace:     "payments",
		Cluster:       "prod-east",
		Image:         types.ArtifactRef{Registry: "ghcr.io", Repository: "payments/checkout", Tag: "v1"},
		Replicas:      2,
		ContainerPort: 8080,
		Exposure:      types.ExposureInternal,
		Resources: types.Resources{
			CPURequest:    types.MustQuantity("250m"),
			CPULimit:      types.MustQuantity("1"),
			MemoryRequest: types.MustQuantity("128Mi"),
			MemoryLimit:   types.MustQuantity("512Mi"),
		},
	}
}

// TestFakeApplyAccepted tests first-submission acceptance
func TestFakeApplyAccepted(t *testing.T) {
	fake := NewFake()

	receipt, err := fake.Apply(context.Background(), credentials.Handle{Token: "tok"}, testWorkload())
	require.NoError(t, err)

	assert.Equal(t, OutcomeAccepted, receipt.Outcome)
	assert.NotEmpty(t, receipt.ApplyID)
	assert.Equal(t, 1, fake.Calls())
	require.NotNil(t, fake.Applied("payments/checkout"))
}

// TestFakeApplyUnchanged tests the idempotent no-op on equal descriptors
func TestFakeApplyUnchanged(t *testing.T) {
	fake := NewFake()
	cred := credentials.Handle{Token: "tok"}

	_, err := fake.Apply(context.Background(), cred, testWorkload())
	require.NoError(t, err)

	// Same deployment request, quantities spelled differently
	resubmit := testWorkload()
	resubmit.Resources.CPULimit = types.MustQuantity("1000m")

	receipt, err := fake.Apply(context.Background(), cred, resubmit)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, receipt.Outcome)
	assert.Empty(t, receipt.ApplyID)
}

// TestFakeApplyChanged tests re-acceptance after a real change
func TestFakeApplyChanged(t *testing.T) {
	fake := NewFake()
	cred := credentials.Handle{Token: "tok"}

	_, err := fake.Apply(context.Background(), cred, testWorkload())
	require.NoError(t, err)

	scaled := testWorkload()
	scaled.Replicas = 5

	receipt, err := fake.Apply(context.Background(), cred, scaled)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, receipt.Outcome)
	assert.Equal(t, 5, fake.Applied("payments/checkout").Replicas)
}

// TestFakeApplyError tests the injected failure
func TestFakeApplyError(t *testing.T) {
	fake := NewFake()
	fake.Err = errors.New("engine unreachable")

	_, err := fake.Apply(context.Background(), credentials.Handle{}, testWorkload())
	assert.Error(t, err)
	assert.Equal(t, 0, fake.Calls())
}

// TestFakeRecordsCredentials tests credential capture
func TestFakeRecordsCredentials(t *testing.T) {
	fake := NewFake()

	_, err := fake.Apply(context.Background(), credentials.Handle{Token: "first"}, testWorkload())
	require.NoError(t, err)
	_, err = fake.Apply(context.Background(), credentials.Handle{Token: "second"}, testWorkload())
	require.NoError(t, err)

	creds := fake.Credentials()
	require.Len(t, creds, 2)
	assert.Equal(t, "first", creds[0].Token)
	assert.Equal(t, "second", creds[1].Token)
}
