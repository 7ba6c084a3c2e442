// Package explain reconstructs, after the fact, the human-readable reason a
// decision came out L0 or L1 from an effect and a class snapshot. Audit and
// UI surfaces consume this; the gate itself never does.
package explain

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
	"github.com/danielpatrickdp/pulse/go-core/internal/decision"
	"github.com/danielpatrickdp/pulse/go-core/internal/drift"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
	"github.com/danielpatrickdp/pulse/go-core/internal/score"
)

// #region explanation

// Explanation is the user-facing account of one autonomy decision.
type Explanation struct {
	Summary           string
	AutonomyLevel     decision.Level
	SafeguardsApplied []string
	FollowUpActions   []string
}

// #endregion explanation

// #region explain

// Explain walks the decision rules over a class snapshot and narrates every
// safeguard that held the effect at L0, or why it cleared to L1.
func Explain(eff effect.Effect, snap class.Record, opts decision.Options, cfg config.Config, now time.Time, location string) Explanation {
	decayScore := score.Decay(snap.LastSuccessAt, now, cfg.Decay)
	eligibility := score.Eligibility(snap.Stats, decayScore)
	currentHash := drift.Current(now, location).Hash()

	var safeguards []string
	var followUps []string

	if opts.IsAbsent {
		safeguards = append(safeguards, "absence dampening: you were away, so nothing ran automatically")
		followUps = append(followUps, "review proposed actions now that you are back")
	}
	if snap.Status == class.StatusPaused {
		safeguards = append(safeguards, "this kind of action is paused")
		followUps = append(followUps, "unpause it to resume learning")
	}
	if snap.Status == class.StatusLocked {
		safeguards = append(safeguards,
			fmt.Sprintf("still earning trust: %d of %d successes needed",
				snap.Stats.Successes, cfg.Autonomy.MinSuccessesForEligible))
		followUps = append(followUps, "keep confirming this action to build trust")
	}
	switch snap.Health {
	case class.HealthLocked:
		safeguards = append(safeguards, "safety lock engaged after repeated problems")
		followUps = append(followUps, "a manual reset is required before this can run on its own")
	case class.HealthDegraded:
		safeguards = append(safeguards, "trust degraded; re-confirmation required")
		followUps = append(followUps, "confirming the next occurrence restores trust")
	}
	if drift.Detected(snap.ContextHash, currentHash) {
		safeguards = append(safeguards, "context changed since this action last earned trust")
	}
	if snap.UserPaused {
		safeguards = append(safeguards, "you paused automatic execution for this action")
	}
	if decayScore > 0 {
		safeguards = append(safeguards,
			fmt.Sprintf("trust faded from inactivity (decay %.2f)", decayScore))
	}

	if len(safeguards) > 0 {
		return Explanation{
			Summary: fmt.Sprintf("Proposed %s in %s instead of running it automatically: %s.",
				eff.Type, eff.Domain, safeguards[0]),
			AutonomyLevel:     decision.L0,
			SafeguardsApplied: safeguards,
			FollowUpActions:   followUps,
		}
	}

	if eligibility >= cfg.Autonomy.EligibilityScoreForL1 &&
		eff.Confidence >= cfg.Autonomy.L1ConfirmDowngradeThreshold {
		return Explanation{
			Summary: fmt.Sprintf("Ran %s in %s automatically: trust score %.2f with confidence %.2f.",
				eff.Type, eff.Domain, eligibility, eff.Confidence),
			AutonomyLevel: decision.L1,
		}
	}

	var why string
	if eligibility < cfg.Autonomy.EligibilityScoreForL1 {
		why = fmt.Sprintf("trust score %.2f is below the %.2f bar", eligibility, cfg.Autonomy.EligibilityScoreForL1)
	} else {
		why = fmt.Sprintf("confidence %.2f is below the %.2f floor", eff.Confidence, cfg.Autonomy.L1ConfirmDowngradeThreshold)
	}
	return Explanation{
		Summary:           fmt.Sprintf("Proposed %s in %s: %s.", eff.Type, eff.Domain, why),
		AutonomyLevel:     decision.L0,
		SafeguardsApplied: []string{why},
		FollowUpActions:   []string{"confirm or reject to keep teaching the assistant"},
	}
}

// #endregion explain
