// Package types defines the descriptor model shared across slipway.
//
// Three descriptor kinds describe a deployment end to end:
//
//	ClusterTopology    - the shape of a target cluster (control plane
//	                     version, network placement, node group sizing)
//	WorkloadDescriptor - one deployable unit pinned to a cluster
//	ImageDescriptor    - how the workload's container image is assembled
//
// Descriptors are declarative. They are parsed from manifests, checked
// by the validate package, and only then consumed by the pipeline. A
// PipelineRun records the execution of the five delivery stages for a
// single trigger; its stage and run states form small state machines
// whose legal transitions are encoded here so every consumer agrees on
// them.
package types
