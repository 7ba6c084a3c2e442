package gate

import (
	"context"

	"github.com/danielpatrickdp/pulse/go-core/internal/decision"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
)

// #region collaborators

// DomainAdapter applies and reverts effects for one domain. Adapters own
// their persistence and must be idempotent under retry.
type DomainAdapter interface {
	Apply(ctx context.Context, eff effect.Effect) error
	Revert(ctx context.Context, eff effect.Effect) (bool, error)
}

// Block is a precondition failure. Every Block fails closed.
type Block struct {
	Reason    string // missing_owner | network_down | permission_gated
	Retryable bool
}

// PreconditionChecker runs the inability check (owner identity present,
// network reachable, permission granted). nil means the attempt may proceed.
type PreconditionChecker interface {
	Check(ctx context.Context, ownerID string) *Block
}

// Notifier is the fire-and-forget voice collaborator, invoked only on
// successful auto-applied effects.
type Notifier interface {
	Speak(text string)
}

// AbsenceSource reports whether the owner is known to be away.
type AbsenceSource func(ownerID string) bool

// #endregion collaborators

// #region results

// Result is the per-attempt write-mode resolution, persisted as an audit
// row and never updated after creation.
type Result struct {
	Success              bool
	WriteMode            decision.WriteMode
	Applied              bool
	AutonomyLevel        decision.Level
	DecisionReason       decision.Reason
	ClassKey             string
	RequiresConfirmation bool
	Blocked              bool
	BlockReason          string
}

// RevertResult reports the outcome of a reversal.
type RevertResult struct {
	Reverted bool
}

// #endregion results
