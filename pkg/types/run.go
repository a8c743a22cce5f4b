package types

import (
	"time"

	"github.com/google/uuid"
)

// StageName identifies one of the five delivery stages.
type StageName string

const (
	StageFetchSource        StageName = "fetch-source"
	StageBuildImage         StageName = "build-image"
	StagePublishImage       StageName = "publish-image"
	StageAcquireCredentials StageName = "acquire-credentials"
	StageApplyWorkload      StageName = "apply-workload"
)

// StageOrder lists the stages in execution order. A stage never starts
// before every earlier stage has succeeded.
var StageOrder = []StageName{
	StageFetchSource,
	StageBuildImage,
	StagePublishImage,
	StageAcquireCredentials,
	StageApplyWorkload,
}

// StageState is the lifecycle state of a single stage.
type StageState string

const (
	StageStatePending   StageState = "pending"
	StageStateRunning   StageState = "running"
	StageStateSucceeded StageState = "succeeded"
	StageStateFailed    StageState = "failed"
	StageStateSkipped   StageState = "skipped"
)

// Terminal reports whether the stage can no longer change state.
func (s StageState) Terminal() bool {
	return s == StageStateSucceeded || s == StageStateFailed || s == StageStateSkipped
}

// CanTransition reports whether moving to the given state is legal.
// Pending stages either start running or are skipped when an earlier
// stage fails; running stages settle as succeeded or failed.
func (s StageState) CanTransition(to StageState) bool {
	switch s {
	case StageStatePending:
		return to == StageStateRunning || to == StageStateSkipped
	case StageStateRunning:
		return to == StageStateSucceeded || to == StageStateFailed
	default:
		return false
	}
}

// RunState is the lifecycle state of a whole pipeline run.
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed
}

// CanTransition reports whether moving to the given state is legal.
func (s RunState) CanTransition(to RunState) bool {
	switch s {
	case RunStatePending:
		return to == RunStateRunning || to == RunStateFailed
	case RunStateRunning:
		return to == RunStateSucceeded || to == RunStateFailed
	default:
		return false
	}
}

// StageStatus records the outcome of one stage within a run.
type StageStatus struct {
	Name       StageName  `json:"name"`
	State      StageState `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt,omitempty"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

// Duration returns how long the stage ran, or zero if it never ran.
func (s StageStatus) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// PipelineRun tracks one trigger through the five stages against a
// single workload on a single cluster.
type PipelineRun struct {
	ID         string        `json:"id"`
	Cluster    string        `json:"cluster"`
	Workload   string        `json:"workload"`
	Trigger    TriggerEvent  `json:"trigger"`
	Stages     []StageStatus `json:"stages"`
	State      RunState      `json:"state"`
	Error      string        `json:"error,omitempty"`
	Artifact   ArtifactRef   `json:"artifact,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// NewPipelineRun builds a pending run with all five stages pending.
func NewPipelineRun(cluster, workload string, trigger TriggerEvent) *PipelineRun {
	stages := make([]StageStatus, 0, len(StageOrder))
	for _, name := range StageOrder {
		stages = append(stages, StageStatus{Name: name, State: StageStatePending})
	}
	return &PipelineRun{
		ID:        uuid.New().String(),
		Cluster:   cluster,
		Workload:  workload,
		Trigger:   trigger,
		Stages:    stages,
		State:     RunStatePending,
		CreatedAt: time.Now().UTC(),
	}
}

// Stage returns the status record for the named stage, or nil.
func (r *PipelineRun) Stage(name StageName) *StageStatus {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// FirstFailure returns the earliest failed stage, or nil.
func (r *PipelineRun) FirstFailure() *StageStatus {
	for i := range r.Stages {
		if r.Stages[i].State == StageStateFailed {
			return &r.Stages[i]
		}
	}
	return nil
}

// Duration returns how long the run executed, or zero if unfinished.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
