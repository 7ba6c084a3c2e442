package decision

// #region level

// Level is the autonomy level of a decision.
type Level string

const (
	// L0: observe/propose only.
	L0 Level = "L0"
	// L1: may auto-execute.
	L1 Level = "L1"
)

// #endregion level

// #region write-mode

// WriteMode is the execution posture of an effect. The confidence policy
// picks the default; learned autonomy can only ever upgrade it to auto.
type WriteMode string

const (
	WriteProposed WriteMode = "proposed"
	WriteConfirm  WriteMode = "confirm"
	WriteAuto     WriteMode = "auto"
)

// #endregion write-mode

// #region reasons

// Reason is the machine-readable explanation of a decision. The set is
// closed so the rule order in Decide stays exhaustively checkable.
type Reason string

const (
	// ReasonAbsenceDampening: the user is known to be away; nothing
	// upgrades to automatic execution with no one present to catch a
	// mistake quickly.
	ReasonAbsenceDampening Reason = "absence_dampening"
	// ReasonClassPaused: the class status is paused.
	ReasonClassPaused Reason = "class_paused"
	// ReasonClassLocked: the class has not earned eligibility.
	ReasonClassLocked Reason = "class_locked"
	// ReasonHealthLocked: the safety state machine locked the class.
	ReasonHealthLocked Reason = "health_locked"
	// ReasonHealthDegraded: the class is degraded and must re-earn trust.
	ReasonHealthDegraded Reason = "health_degraded"
	// ReasonContextDrift: the live context differs from the one the class
	// earned trust in.
	ReasonContextDrift Reason = "context_drift"
	// ReasonUserPaused: an explicit user override beats any score.
	ReasonUserPaused Reason = "user_paused"
	// ReasonL1Upgrade: score and live confidence both cleared their floors.
	ReasonL1Upgrade Reason = "l1_upgrade"
	// ReasonNoUpgrade: nothing blocked the class, but it has not earned L1.
	ReasonNoUpgrade Reason = "no_upgrade"
	// ReasonEngineError: the engine could not evaluate and fell back to the
	// most restrictive outcome.
	ReasonEngineError Reason = "engine_error"
)

// #endregion reasons

// #region decision

// Decision is the engine's output for one effect.
type Decision struct {
	Level             Level
	UpgradedWriteMode WriteMode // set only on L1
	Reason            Reason
	ClassKey          string
}

// Options tunes a single evaluation.
type Options struct {
	// IsAbsent marks the user as known to be away.
	IsAbsent bool
}

// #endregion decision
