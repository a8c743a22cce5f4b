package types

import (
	"fmt"
	"time"
)

// ClusterTopology describes the desired shape of a target cluster.
type ClusterTopology struct {
	Name                string           `yaml:"-" json:"name" validate:"required,hostname_rfc1123"`
	ControlPlaneVersion string           `yaml:"controlPlaneVersion" json:"controlPlaneVersion" validate:"required"`
	Network             NetworkPlacement `yaml:"network" json:"network"`
	NodeGroup           NodeGroup        `yaml:"nodeGroup" json:"nodeGroup"`
}

// NetworkPlacement pins a cluster to a VPC and its subnets. At least
// two subnets are required so node groups span availability zones.
type NetworkPlacement struct {
	VPC     string   `yaml:"vpc" json:"vpc" validate:"required"`
	Subnets []string `yaml:"subnets" json:"subnets" validate:"min=2,unique,dive,required"`
}

// NodeGroup sizes the worker pool. minSize <= desiredSize <= maxSize
// must hold, and maxSize is never below one.
type NodeGroup struct {
	InstanceClass string `yaml:"instanceClass" json:"instanceClass" validate:"required"`
	MinSize       int    `yaml:"minSize" json:"minSize" validate:"min=0"`
	DesiredSize   int    `yaml:"desiredSize" json:"desiredSize" validate:"gtefield=MinSize,ltefield=MaxSize"`
	MaxSize       int    `yaml:"maxSize" json:"maxSize" validate:"min=1"`
}

// WorkloadDescriptor describes one deployable unit and the cluster it
// runs on. Name and Namespace come from manifest metadata, not spec.
type WorkloadDescriptor struct {
	Name          string      `yaml:"-" json:"name" validate:"required,hostname_rfc1123"`
	Namespace     string      `yaml:"-" json:"namespace" validate:"required"`
	Cluster       string      `yaml:"cluster" json:"cluster" validate:"required"`
	Image         ArtifactRef `yaml:"image" json:"image"`
	Replicas      int         `yaml:"replicas" json:"replicas" validate:"min=0"`
	ContainerPort int         `yaml:"containerPort" json:"containerPort" validate:"min=1,max=65535"`
	Resources     Resources   `yaml:"resources" json:"resources"`
	Exposure      Exposure    `yaml:"exposure" json:"exposure" validate:"oneof=Internal LoadBalanced"`
	ExternalPort  int         `yaml:"externalPort,omitempty" json:"externalPort,omitempty" validate:"required_if=Exposure LoadBalanced,excluded_unless=Exposure LoadBalanced,omitempty,min=1,max=65535"`
}

// Key returns the namespace/name identity of the workload.
func (w *WorkloadDescriptor) Key() string {
	return w.Namespace + "/" + w.Name
}

// Equal reports whether two descriptors request the same deployment.
// Quantities compare by value, so "1000m" equals "1".
func (w *WorkloadDescriptor) Equal(other *WorkloadDescriptor) bool {
	if other == nil {
		return false
	}
	if w.Name != other.Name ||
		w.Namespace != other.Namespace ||
		w.Cluster != other.Cluster ||
		w.Image != other.Image ||
		w.Replicas != other.Replicas ||
		w.ContainerPort != other.ContainerPort ||
		w.Exposure != other.Exposure ||
		w.ExternalPort != other.ExternalPort {
		return false
	}
	return w.Resources.Equal(other.Resources)
}

// Exposure selects how a workload is reachable.
type Exposure string

const (
	ExposureInternal     Exposure = "Internal"
	ExposureLoadBalanced Exposure = "LoadBalanced"
)

// Resources carries CPU and memory requests and limits. A zero
// quantity means unset; set limits must be at least their request.
type Resources struct {
	CPURequest    Quantity `yaml:"cpuRequest" json:"cpuRequest"`
	CPULimit      Quantity `yaml:"cpuLimit" json:"cpuLimit"`
	MemoryRequest Quantity `yaml:"memoryRequest" json:"memoryRequest"`
	MemoryLimit   Quantity `yaml:"memoryLimit" json:"memoryLimit"`
}

// Equal compares all four quantities by value.
func (r Resources) Equal(other Resources) bool {
	return r.CPURequest.Cmp(other.CPURequest.Quantity) == 0 &&
		r.CPULimit.Cmp(other.CPULimit.Quantity) == 0 &&
		r.MemoryRequest.Cmp(other.MemoryRequest.Quantity) == 0 &&
		r.MemoryLimit.Cmp(other.MemoryLimit.Quantity) == 0
}

// ArtifactRef identifies a container image as registry/repository:tag.
type ArtifactRef struct {
	Registry   string `yaml:"registry" json:"registry" validate:"required"`
	Repository string `yaml:"repository" json:"repository" validate:"required"`
	Tag        string `yaml:"tag" json:"tag" validate:"required"`
}

// String renders the reference in pullable form.
func (r ArtifactRef) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// IsZero reports whether any component is missing.
func (r ArtifactRef) IsZero() bool {
	return r.Registry == "" || r.Repository == "" || r.Tag == ""
}

// WithTag returns a copy of the reference pointing at a different tag.
func (r ArtifactRef) WithTag(tag string) ArtifactRef {
	r.Tag = tag
	return r
}

// ImageDescriptor describes how a workload's image is assembled from a
// fetched source tree: a build-stage base, a runtime-stage base, the
// directory layered into the runtime image, and the container contract
// (exposed port and entrypoint).
type ImageDescriptor struct {
	Name         string   `yaml:"-" json:"name" validate:"required"`
	BaseImage    string   `yaml:"baseImage" json:"baseImage" validate:"required"`
	RuntimeImage string   `yaml:"runtimeImage" json:"runtimeImage" validate:"required"`
	BuildDir     string   `yaml:"buildDir,omitempty" json:"buildDir,omitempty"`
	ExposedPort  int      `yaml:"exposedPort" json:"exposedPort" validate:"min=1,max=65535"`
	Entrypoint   []string `yaml:"entrypoint" json:"entrypoint" validate:"min=1,dive,required"`
}

// TriggerEvent is a source-control notification that may start a run.
type TriggerEvent struct {
	CommitID   string    `json:"commitId"`
	Branch     string    `json:"branch"`
	ReceivedAt time.Time `json:"receivedAt"`
}
