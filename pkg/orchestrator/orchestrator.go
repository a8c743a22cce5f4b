// Package orchestrator defines the contract between slipway and the
// reconciliation engine running on each target cluster.
package orchestrator

import (
	"context"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Outcome reports how the engine took a submission.
type Outcome string

const (
	// OutcomeAccepted means the engine took a changed descriptor and is
	// converging the cluster toward it.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeUnchanged means the descriptor already matches the
	// engine's desired state; nothing was modified.
	OutcomeUnchanged Outcome = "unchanged"
)

// Receipt is the engine's acknowledgement of a submission.
type Receipt struct {
	Outcome Outcome
	ApplyID string
}

// Orchestrator hands validated workload descriptors to the cluster's
// reconciliation engine. A submission replaces the workload's desired
// state wholesale; there are no partial edits.
//
// Implementations guarantee:
//   - an accepted descriptor converges to `replicas` healthy replicas
//     of the referenced artifact behind the declared exposure
//   - resubmitting an unchanged descriptor changes nothing
//   - replica count changes roll gradually; running replicas are never
//     torn down ahead of their replacements unless replicas is zero
//   - flipping exposure preserves the running workload
//
// Convergence itself happens inside the engine; callers only see the
// receipt.
type Orchestrator interface {
	Apply(ctx context.Context, cred credentials.Handle, wd *types.WorkloadDescriptor) (Receipt, error)
}
