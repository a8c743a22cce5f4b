package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/orchestrator"
	"github.com/slipway-sh/slipway/pkg/registry"
	"github.com/slipway-sh/slipway/pkg/source"
	"github.com/slipway-sh/slipway/pkg/types"
)

// ErrRunCancelled is recorded on runs that were cancelled before
// completing. A running stage always finishes first.
var ErrRunCancelled = errors.New("run cancelled")

// ErrBranchIgnored is returned by Submit when the trigger's branch is
// not the one the coordinator watches. No run is created.
var ErrBranchIgnored = errors.New("trigger branch ignored")

// StageError reports which stage ended a run and whether the stage
// deadline caused it.
type StageError struct {
	Stage   types.StageName
	Err     error
	Timeout bool
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s timed out: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Target binds a workload descriptor to the image recipe its artifact
// is built from. A trigger is always submitted against a target.
type Target struct {
	Workload *types.WorkloadDescriptor
	Image    *types.ImageDescriptor
}

// Engines are the external collaborators a run drives, one per stage.
// All five must be populated before the coordinator starts.
type Engines struct {
	Fetcher     source.Fetcher
	Builder     registry.Builder
	Publisher   registry.Publisher
	Credentials credentials.Source
	Submitter   orchestrator.Orchestrator
}

// Config tunes the coordinator.
type Config struct {
	// Branch filters triggers. Only commits on this branch start runs;
	// the rest are logged and ignored. Empty watches every branch.
	Branch string

	// StageTimeouts overrides the default deadline per stage.
	StageTimeouts map[types.StageName]time.Duration
}

var defaultStageTimeouts = map[types.StageName]time.Duration{
	types.StageFetchSource:        2 * time.Minute,
	types.StageBuildImage:         10 * time.Minute,
	types.StagePublishImage:       5 * time.Minute,
	types.StageAcquireCredentials: 30 * time.Second,
	types.StageApplyWorkload:      2 * time.Minute,
}

func (c Config) stageTimeout(name types.StageName) time.Duration {
	if d, ok := c.StageTimeouts[name]; ok && d > 0 {
		return d
	}
	return defaultStageTimeouts[name]
}

// artifactTag derives the published image tag from a commit id, the
// first twelve characters the way git abbreviates hashes.
func artifactTag(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
