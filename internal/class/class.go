// Package class holds the durable learned-policy unit of the autonomy core:
// the autonomy class row keyed by domain:effectType:fingerprint, and its
// SQLite store. Classes are append-only in spirit — created lazily, mutated
// on every outcome and decision, never deleted.
package class

import "time"

// #region enums

// Status is the learned authority of a class. Only the decision engine's
// promotion rule (or manual administration) may change it.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusEligible Status = "eligible"
	StatusPaused   Status = "paused"
)

// HealthState is the safety status layered on top of eligibility.
// Automatic transitions only move forward: healthy → degraded → locked.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthLocked   HealthState = "locked"
)

// #endregion enums

// #region stats

// Stats are the monotonically incrementing outcome counters that feed the
// eligibility score and the health evaluator.
type Stats struct {
	Successes       int
	Confirmations   int
	Rejections      int
	Reverts         int
	ConfusionEvents int
	IPPBlocks       int
}

// #endregion stats

// #region record

// Record is one autonomy class row. EligibilityScore and DecayScore are
// derived values recomputed on every evaluation; they are persisted only so
// inspection surfaces can read the last-known values without rescoring.
type Record struct {
	ClassKey    string
	Domain      string
	EffectType  string
	Fingerprint string

	Status           Status
	EligibilityScore float32
	Stats            Stats
	DecayScore       float32
	LastSuccessAt    *time.Time
	ContextHash      string

	Health           HealthState
	RevertsAtDegrade int // revert counter snapshot taken when degraded was entered
	RecoveryAttempts int
	UserPaused       bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// #endregion record
