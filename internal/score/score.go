// Package score converts accumulated outcome statistics and accrued decay
// into the bounded [0,1] eligibility score, and computes inactivity decay.
// Both functions are pure; callers persist the results.
package score

import (
	"time"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
)

// #region weights

// Outcome weights. A revert is weighted twice as heavy as a rejection: a
// reverted action already executed before being undone, and the cost of an
// autonomous mistake is categorically higher than one that was only proposed.
const (
	successWeight   = 1.0
	rejectionWeight = 5.0
	revertWeight    = 10.0
	confusionWeight = 2.0
	ippBlockWeight  = 2.0

	// normalizer maps 20 net successes to a score of 1.0.
	normalizer = 20.0
)

// #endregion weights

// #region eligibility

// Eligibility computes the derived trust score from outcome counters and the
// current decay. Always in [0,1].
func Eligibility(st class.Stats, decay float32) float32 {
	raw := successWeight*float32(st.Successes) -
		rejectionWeight*float32(st.Rejections) -
		revertWeight*float32(st.Reverts) -
		confusionWeight*float32(st.ConfusionEvents) -
		ippBlockWeight*float32(st.IPPBlocks)

	if raw < 0 {
		raw = 0
	}

	normalized := raw / normalizer
	if normalized > 1 {
		normalized = 1
	}

	s := normalized - decay
	if s < 0 {
		s = 0
	}
	return s
}

// #endregion eligibility

// #region decay

// Decay computes the inactivity penalty since the last recorded success.
// Classes that never succeeded do not decay — decay only erodes earned
// trust. Above the inactivity threshold the penalty accrues linearly per
// overdue day, clamped to the configured cap.
func Decay(lastSuccessAt *time.Time, now time.Time, cfg config.DecayConfig) float32 {
	if lastSuccessAt == nil {
		return 0
	}

	days := int(now.Sub(*lastSuccessAt).Hours() / 24)
	if days <= cfg.InactivityThresholdDays {
		return 0
	}

	overdue := days - cfg.InactivityThresholdDays
	d := cfg.PerDay * float32(overdue)
	if d > cfg.Cap {
		d = cfg.Cap
	}
	return d
}

// #endregion decay
