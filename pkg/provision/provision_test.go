package provision

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/types"
)

func testTopology() *types.ClusterTopology {
	return &types.ClusterTopology{
		Name:                "prod-east",
		ControlPlaneVersion: "1.31",
		Network: types.NetworkPlacement{
			VPC:     "vpc-0a1b2c",
			Subnets: []string{"subnet-aaa", "subnet-bbb"},
		},
		NodeGroup: types.NodeGroup{
			InstanceClass: "t3.medium",
			MinSize:       1,
			DesiredSize:   2,
			MaxSize:       3,
		},
	}
}

// parseVars decodes rendered tfvars back into attribute values.
func parseVars(t *testing.T, rendered []byte) map[string]cty.Value {
	t.Helper()

	file, diags := hclparse.NewParser().ParseHCL(rendered, "test.tfvars")
	require.False(t, diags.HasErrors(), "rendered tfvars must parse: %s", diags.Error())

	attrs, diags := file.Body.JustAttributes()
	require.False(t, diags.HasErrors(), diags.Error())

	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		value, diags := attr.Expr.Value(&hcl.EvalContext{})
		require.False(t, diags.HasErrors(), diags.Error())
		values[name] = value
	}
	return values
}

// TestRenderVars tests the rendered variable content
func TestRenderVars(t *testing.T) {
	values := parseVars(t, RenderVars(testTopology()))

	assert.Equal(t, "prod-east", values["cluster_name"].AsString())
	assert.Equal(t, "1.31", values["control_plane_version"].AsString())
	assert.Equal(t, "vpc-0a1b2c", values["vpc_id"].AsString())

	subnets := values["subnet_ids"].AsValueSlice()
	require.Len(t, subnets, 2)
	assert.Equal(t, "subnet-aaa", subnets[0].AsString())
	assert.Equal(t, "subnet-bbb", subnets[1].AsString())

	nodeGroup := values["node_group"]
	assert.Equal(t, "t3.medium", nodeGroup.GetAttr("instance_class").AsString())
	assert.True(t, nodeGroup.GetAttr("min_size").RawEquals(cty.NumberIntVal(1)))
	assert.True(t, nodeGroup.GetAttr("desired_size").RawEquals(cty.NumberIntVal(2)))
	assert.True(t, nodeGroup.GetAttr("max_size").RawEquals(cty.NumberIntVal(3)))
}

// TestRenderVarsDeterministic tests byte-stable rendering
func TestRenderVarsDeterministic(t *testing.T) {
	ct := testTopology()

	first := RenderVars(ct)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, RenderVars(ct), "rendering must be deterministic")
	}
}

// TestDirProvisionerApply tests writing the variable file
func TestDirProvisionerApply(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewDirProvisioner(fs, "/provision", nil)

	receipt, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)

	assert.Equal(t, OutcomeAccepted, receipt.Outcome)
	assert.NotEmpty(t, receipt.ApplyID)
	assert.Equal(t, "/provision/prod-east.auto.tfvars", receipt.Path)

	content, err := afero.ReadFile(fs, receipt.Path)
	require.NoError(t, err)
	assert.Equal(t, RenderVars(testTopology()), content)
}

// TestDirProvisionerApplyUnchanged tests the no-op on identical content
func TestDirProvisionerApplyUnchanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewDirProvisioner(fs, "/provision", nil)

	_, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)

	receipt, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, receipt.Outcome)
	assert.Empty(t, receipt.ApplyID)
}

// TestDirProvisionerApplyChanged tests replacement on topology change
func TestDirProvisionerApplyChanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewDirProvisioner(fs, "/provision", nil)

	_, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)

	grown := testTopology()
	grown.NodeGroup.DesiredSize = 3

	receipt, err := p.Apply(context.Background(), grown)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, receipt.Outcome)

	content, err := afero.ReadFile(fs, receipt.Path)
	require.NoError(t, err)
	assert.Equal(t, RenderVars(grown), content)

	values := parseVars(t, content)
	assert.True(t, values["node_group"].GetAttr("desired_size").RawEquals(cty.NumberIntVal(3)))
}

// TestDirProvisionerPublishesEvent tests the topology.rendered event
func TestDirProvisionerPublishesEvent(t *testing.T) {
	broker := events.NewBroker()
	sub := broker.Subscribe(events.EventTopologyRendered)
	defer sub.Close()

	p := NewDirProvisioner(afero.NewMemMapFs(), "/provision", broker)

	_, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)

	select {
	case event := <-sub.C:
		assert.Equal(t, events.EventTopologyRendered, event.Type)
		assert.Equal(t, "prod-east", event.Cluster)
	default:
		t.Fatal("expected a topology.rendered event")
	}
}

// TestDirProvisionerDestroy tests variable file removal
func TestDirProvisionerDestroy(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewDirProvisioner(fs, "/provision", nil)

	_, err := p.Apply(context.Background(), testTopology())
	require.NoError(t, err)

	receipt, err := p.Destroy(context.Background(), "prod-east")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, receipt.Outcome)

	exists, err := afero.Exists(fs, receipt.Path)
	require.NoError(t, err)
	assert.False(t, exists)

	// Destroying again is a no-op
	receipt, err = p.Destroy(context.Background(), "prod-east")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, receipt.Outcome)
}

// TestDirProvisionerCancelledContext tests context checks
func TestDirProvisionerCancelledContext(t *testing.T) {
	p := NewDirProvisioner(afero.NewMemMapFs(), "/provision", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Apply(ctx, testTopology())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.Destroy(ctx, "prod-east")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFakeProvisioner tests the recording fake
func TestFakeProvisioner(t *testing.T) {
	fake := NewFakeProvisioner()

	_, err := fake.Apply(context.Background(), testTopology())
	require.NoError(t, err)
	_, err = fake.Destroy(context.Background(), "prod-east")
	require.NoError(t, err)

	require.Len(t, fake.Applies(), 1)
	assert.Equal(t, "prod-east", fake.Applies()[0].Name)
	assert.Equal(t, []string{"prod-east"}, fake.Destroys())
}
