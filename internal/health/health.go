// Package health is the safety state machine layered on top of eligibility:
// healthy → degraded → locked, forward-only for automatic transitions.
// Evaluate is a pure function of a class snapshot; the caller persists any
// transition, which keeps the rule table testable without I/O.
package health

import (
	"fmt"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
)

// #region reasons

// Reason explains a health transition (or its absence).
type Reason string

const (
	ReasonStable              Reason = "stable"
	ReasonConfusionLock       Reason = "confusion_lock"
	ReasonDecayDegrade        Reason = "decay_degrade"
	ReasonDriftDegrade        Reason = "drift_degrade"
	ReasonRevertDegrade       Reason = "revert_degrade"
	ReasonSevereDecayLock     Reason = "severe_decay_lock"
	ReasonRevertWhileDegraded Reason = "revert_while_degraded_lock"
)

// #endregion reasons

// #region evaluate

// Input is the slice of a class snapshot the evaluator reads.
type Input struct {
	State            class.HealthState
	Stats            class.Stats
	DecayScore       float32
	Drifted          bool
	RevertsAtDegrade int
}

// Result is the evaluator's verdict.
type Result struct {
	State   class.HealthState
	Reason  Reason
	Changed bool
}

// Evaluate applies the transition rules in priority order:
//  1. any state → locked on the confusion threshold (hard override)
//  2. healthy → degraded on decay, drift, or reverts
//  3. degraded → locked on severe decay, or on any revert recorded while
//     degraded (the revert counter moved past its degrade-time snapshot)
//  4. otherwise unchanged
//
// Locked never leaves automatically; clearing it is a human action.
func Evaluate(in Input, cfg config.HealthConfig) Result {
	// Rule 1: confusion hard override.
	if in.Stats.ConfusionEvents >= cfg.ConfusionLockThreshold {
		return Result{
			State:   class.HealthLocked,
			Reason:  ReasonConfusionLock,
			Changed: in.State != class.HealthLocked,
		}
	}

	switch in.State {
	case class.HealthHealthy:
		if in.DecayScore >= cfg.DecayDegradeThreshold {
			return Result{State: class.HealthDegraded, Reason: ReasonDecayDegrade, Changed: true}
		}
		if in.Drifted {
			return Result{State: class.HealthDegraded, Reason: ReasonDriftDegrade, Changed: true}
		}
		if in.Stats.Reverts >= cfg.RevertsForDegrade {
			return Result{State: class.HealthDegraded, Reason: ReasonRevertDegrade, Changed: true}
		}

	case class.HealthDegraded:
		// Degraded classes are held to a stricter decay bar than healthy ones.
		if in.DecayScore >= cfg.DecaySevereThreshold {
			return Result{State: class.HealthLocked, Reason: ReasonSevereDecayLock, Changed: true}
		}
		if in.Stats.Reverts > in.RevertsAtDegrade {
			return Result{State: class.HealthLocked, Reason: ReasonRevertWhileDegraded, Changed: true}
		}
	}

	return Result{State: in.State, Reason: ReasonStable, Changed: false}
}

// #endregion evaluate

// #region recovery

// RecoveryDecision reports whether a degraded class may be tentatively
// re-offered to the user.
type RecoveryDecision struct {
	Allowed bool
	Reason  string
}

// CanAttemptRecovery gates recovery attempts. Only degraded classes qualify;
// locked classes require manual intervention, a hard invariant rather than a
// policy default. Permitting an attempt changes no state by itself — actual
// recovery happens via a later user-confirmed success.
func CanAttemptRecovery(rec class.Record, maxAttempts int) RecoveryDecision {
	switch rec.Health {
	case class.HealthLocked:
		return RecoveryDecision{Allowed: false, Reason: "class is locked; manual intervention required"}
	case class.HealthHealthy:
		return RecoveryDecision{Allowed: false, Reason: "class is healthy; nothing to recover"}
	}
	if rec.RecoveryAttempts >= maxAttempts {
		return RecoveryDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("recovery attempts exhausted (%d/%d)", rec.RecoveryAttempts, maxAttempts),
		}
	}
	return RecoveryDecision{Allowed: true, Reason: "degraded class may be re-offered"}
}

// #endregion recovery
