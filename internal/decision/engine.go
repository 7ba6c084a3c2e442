// Package decision is the central policy function of the autonomy core:
// given a class's refreshed state and the live effect, it returns an
// autonomy level and a machine-readable reason. Hard locks and absence beat
// drift, drift beats score, and score alone never clears an effect without
// a live confidence floor.
package decision

import (
	"log"
	"time"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
	"github.com/danielpatrickdp/pulse/go-core/internal/drift"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
	"github.com/danielpatrickdp/pulse/go-core/internal/health"
	"github.com/danielpatrickdp/pulse/go-core/internal/score"
)

// #region write-mode-policy

// WriteModeFor maps raw model confidence to the default write mode. This is
// independent of learned autonomy and applies even to never-seen classes.
func WriteModeFor(confidence float32, cfg config.AutonomyConfig) WriteMode {
	switch {
	case confidence >= cfg.AutoWriteThreshold:
		return WriteAuto
	case confidence >= cfg.ConfirmThreshold:
		return WriteConfirm
	default:
		return WriteProposed
	}
}

// #endregion write-mode-policy

// #region engine

// Engine evaluates autonomy decisions over the persisted class store. It is
// request-scoped and stateless; distinct class keys evaluate fully in
// parallel.
type Engine struct {
	classes  *class.Store
	cfg      config.Config
	now      func() time.Time
	location func() string
}

// Option customizes an Engine (clock and location injection for tests).
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation overrides the location-category source.
func WithLocation(loc func() string) Option {
	return func(e *Engine) { e.location = loc }
}

// NewEngine creates an engine over the class store.
func NewEngine(classes *class.Store, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		classes:  classes,
		cfg:      cfg,
		now:      time.Now,
		location: func() string { return "" },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetConfig swaps the threshold set (config hot-reload).
func (e *Engine) SetConfig(cfg config.Config) {
	e.cfg = cfg
}

// #endregion engine

// #region decide

// Decide classifies the effect, refreshes its class (score recompute,
// promotion, health transitions), and applies the policy rules in order.
// On internal error it returns the most restrictive outcome alongside the
// error so the caller is never uncertain whether an auto-apply happened.
func (e *Engine) Decide(eff effect.Effect, opts Options) (Decision, error) {
	cls := classify.Classify(eff)
	l0 := func(r Reason) Decision {
		return Decision{Level: L0, Reason: r, ClassKey: cls.ClassKey}
	}

	if _, err := e.classes.FetchOrCreate(cls); err != nil {
		return l0(ReasonEngineError), err
	}

	now := e.now()
	currentHash := drift.Current(now, e.location()).Hash()

	rec, healthReason, err := e.refresh(cls.ClassKey, now, currentHash)
	if err != nil {
		return l0(ReasonEngineError), err
	}

	// Rule order per safety priority. Absence wins over everything: when
	// the user is away there is no one present to catch a mistake quickly.
	if opts.IsAbsent {
		return l0(ReasonAbsenceDampening), nil
	}
	if rec.Status == class.StatusPaused {
		return l0(ReasonClassPaused), nil
	}
	if rec.Status == class.StatusLocked {
		return l0(ReasonClassLocked), nil
	}
	if rec.Health == class.HealthLocked {
		return l0(ReasonHealthLocked), nil
	}
	if rec.Health == class.HealthDegraded {
		// A degradation caused by drift in this very evaluation reads as
		// drift; an older degradation reads as degraded health.
		if healthReason == health.ReasonDriftDegrade {
			return l0(ReasonContextDrift), nil
		}
		return l0(ReasonHealthDegraded), nil
	}
	if drift.Detected(rec.ContextHash, currentHash) {
		return l0(ReasonContextDrift), nil
	}
	if rec.UserPaused {
		return l0(ReasonUserPaused), nil
	}
	if rec.EligibilityScore >= e.cfg.Autonomy.EligibilityScoreForL1 &&
		eff.Confidence >= e.cfg.Autonomy.L1ConfirmDowngradeThreshold {
		log.Printf("[DECIDE] L1 upgrade class=%s score=%.2f confidence=%.2f",
			cls.ClassKey, rec.EligibilityScore, eff.Confidence)
		return Decision{
			Level:             L1,
			UpgradedWriteMode: WriteAuto,
			Reason:            ReasonL1Upgrade,
			ClassKey:          cls.ClassKey,
		}, nil
	}
	return l0(ReasonNoUpgrade), nil
}

// refresh recomputes the derived fields of a class and persists any
// promotion or health transition before the policy rules read it. The
// cached eligibility score is never trusted. Returns the health reason of
// this cycle so Decide can attribute a fresh degradation.
func (e *Engine) refresh(classKey string, now time.Time, currentHash string) (class.Record, health.Reason, error) {
	healthReason := health.ReasonStable
	rec, err := e.classes.Mutate(classKey, func(r *class.Record) error {
		r.DecayScore = score.Decay(r.LastSuccessAt, now, e.cfg.Decay)
		r.EligibilityScore = score.Eligibility(r.Stats, r.DecayScore)

		if r.Status == class.StatusLocked && r.Stats.Successes >= e.cfg.Autonomy.MinSuccessesForEligible {
			log.Printf("[DECIDE] promote class=%s successes=%d", r.ClassKey, r.Stats.Successes)
			r.Status = class.StatusEligible
		}

		res := health.Evaluate(health.Input{
			State:            r.Health,
			Stats:            r.Stats,
			DecayScore:       r.DecayScore,
			Drifted:          drift.Detected(r.ContextHash, currentHash),
			RevertsAtDegrade: r.RevertsAtDegrade,
		}, e.cfg.Health)
		healthReason = res.Reason
		if res.Changed {
			log.Printf("[DECIDE] health %s → %s class=%s reason=%s", r.Health, res.State, r.ClassKey, res.Reason)
			if res.State == class.HealthDegraded {
				r.RevertsAtDegrade = r.Stats.Reverts
			}
			r.Health = res.State
		}
		return nil
	})
	return rec, healthReason, err
}

// #endregion decide
