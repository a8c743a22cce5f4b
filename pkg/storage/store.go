package storage

import (
	"errors"

	"github.com/slipway-sh/slipway/pkg/types"
)

// ErrNotFound is wrapped by lookups that miss.
var ErrNotFound = errors.New("not found")

// Store persists descriptors and pipeline runs.
// Implemented by BoltDB-backed storage.
type Store interface {
	// Runs
	SaveRun(run *types.PipelineRun) error
	GetRun(id string) (*types.PipelineRun, error)
	ListRuns() ([]*types.PipelineRun, error)
	ListRunsByCluster(cluster string) ([]*types.PipelineRun, error)
	DeleteRun(id string) error

	// Topologies
	SaveTopology(ct *types.ClusterTopology) error
	GetTopology(name string) (*types.ClusterTopology, error)
	ListTopologies() ([]*types.ClusterTopology, error)
	DeleteTopology(name string) error

	// Workloads, keyed by namespace/name
	SaveWorkload(wd *types.WorkloadDescriptor) error
	GetWorkload(namespace, name string) (*types.WorkloadDescriptor, error)
	ListWorkloads() ([]*types.WorkloadDescriptor, error)
	DeleteWorkload(namespace, name string) error

	// Utility
	Close() error
}
