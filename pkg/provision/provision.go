// Package provision renders validated cluster topologies into the
// variable files the external provisioning engine consumes.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"

	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Outcome reports how the provisioning engine took a topology.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeUnchanged Outcome = "unchanged"
)

// Receipt is the result of handing a topology to the engine.
type Receipt struct {
	Outcome Outcome
	ApplyID string
	Path    string
}

// Provisioner hands validated topologies to the provisioning engine.
// Submissions are whole-topology replacements, never partial edits.
type Provisioner interface {
	Apply(ctx context.Context, ct *types.ClusterTopology) (Receipt, error)
	Destroy(ctx context.Context, cluster string) (Receipt, error)
}

// RenderVars renders the topology into Terraform variable definitions.
// Rendering is deterministic: the same topology yields byte-identical
// output, so unchanged topologies are detectable by comparison.
func RenderVars(ct *types.ClusterTopology) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("cluster_name", cty.StringVal(ct.Name))
	body.SetAttributeValue("control_plane_version", cty.StringVal(ct.ControlPlaneVersion))
	body.SetAttributeValue("vpc_id", cty.StringVal(ct.Network.VPC))

	subnets := make([]cty.Value, 0, len(ct.Network.Subnets))
	for _, subnet := range ct.Network.Subnets {
		subnets = append(subnets, cty.StringVal(subnet))
	}
	if len(subnets) == 0 {
		body.SetAttributeValue("subnet_ids", cty.ListValEmpty(cty.String))
	} else {
		body.SetAttributeValue("subnet_ids", cty.ListVal(subnets))
	}

	body.SetAttributeValue("node_group", cty.ObjectVal(map[string]cty.Value{
		"instance_class": cty.StringVal(ct.NodeGroup.InstanceClass),
		"min_size":       cty.NumberIntVal(int64(ct.NodeGroup.MinSize)),
		"desired_size":   cty.NumberIntVal(int64(ct.NodeGroup.DesiredSize)),
		"max_size":       cty.NumberIntVal(int64(ct.NodeGroup.MaxSize)),
	}))

	return f.Bytes()
}

// DirProvisioner writes rendered variables into a directory watched by
// the provisioning engine. One writer per cluster at a time; content
// already on disk is not rewritten.
type DirProvisioner struct {
	fs     afero.Fs
	dir    string
	broker *events.Broker
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDirProvisioner creates a provisioner writing under dir. A nil fs
// uses the OS filesystem; a nil broker disables event publishing.
func NewDirProvisioner(fs afero.Fs, dir string, broker *events.Broker) *DirProvisioner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DirProvisioner{
		fs:     fs,
		dir:    dir,
		broker: broker,
		logger: log.WithComponent("provision"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (p *DirProvisioner) clusterLock(cluster string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, exists := p.locks[cluster]
	if !exists {
		lock = &sync.Mutex{}
		p.locks[cluster] = lock
	}
	return lock
}

func (p *DirProvisioner) varsPath(cluster string) string {
	return filepath.Join(p.dir, cluster+".auto.tfvars")
}

// Apply renders the topology and replaces the cluster's variable file.
// An identical rendering already on disk returns Unchanged.
func (p *DirProvisioner) Apply(ctx context.Context, ct *types.ClusterTopology) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	lock := p.clusterLock(ct.Name)
	lock.Lock()
	defer lock.Unlock()

	rendered := RenderVars(ct)
	path := p.varsPath(ct.Name)

	if existing, err := afero.ReadFile(p.fs, path); err == nil && bytes.Equal(existing, rendered) {
		p.logger.Debug().Str("cluster", ct.Name).Msg("Topology unchanged")
		return Receipt{Outcome: OutcomeUnchanged, Path: path}, nil
	}

	if err := p.fs.MkdirAll(p.dir, 0755); err != nil {
		return Receipt{}, fmt.Errorf("failed to create %s: %w", p.dir, err)
	}

	if err := afero.WriteFile(p.fs, path, rendered, 0644); err != nil {
		return Receipt{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if p.broker != nil {
		p.broker.Publish(events.Event{
			Type:    events.EventTopologyRendered,
			Cluster: ct.Name,
			Message: path,
		})
	}

	p.logger.Info().
		Str("cluster", ct.Name).
		Str("path", path).
		Msg("Topology rendered")

	return Receipt{Outcome: OutcomeAccepted, ApplyID: uuid.New().String(), Path: path}, nil
}

// Destroy removes the cluster's variable file. A missing file returns
// Unchanged.
func (p *DirProvisioner) Destroy(ctx context.Context, cluster string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	lock := p.clusterLock(cluster)
	lock.Lock()
	defer lock.Unlock()

	path := p.varsPath(cluster)

	exists, err := afero.Exists(p.fs, path)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		return Receipt{Outcome: OutcomeUnchanged, Path: path}, nil
	}

	if err := p.fs.Remove(path); err != nil {
		return Receipt{}, fmt.Errorf("failed to remove %s: %w", path, err)
	}

	p.logger.Info().Str("cluster", cluster).Msg("Topology removed")

	return Receipt{Outcome: OutcomeAccepted, ApplyID: uuid.New().String(), Path: path}, nil
}
