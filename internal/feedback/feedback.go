// Package feedback turns observed outcomes and user responses into the two
// learning ledgers: per-class outcome counters (which feed eligibility and
// health) and a per-domain trust score (which tunes timing and confidence
// only). It never writes autonomy status or health state — permissions only
// escalate through the decision engine's explicit promotion rule, so no
// feedback loop can silently grant itself authority.
package feedback

import (
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
	"github.com/danielpatrickdp/pulse/go-core/internal/drift"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
)

// #region outcomes

// Outcome is an observed result of an executed or proposed effect.
type Outcome string

const (
	// OutcomeSuccess: the effect applied and stuck.
	OutcomeSuccess Outcome = "success"
	// OutcomeConfirm: the user explicitly confirmed and the effect applied.
	OutcomeConfirm Outcome = "confirm"
	// OutcomeReject: the user declined a proposed effect.
	OutcomeReject Outcome = "reject"
	// OutcomeRevert: an already-applied effect was undone.
	OutcomeRevert Outcome = "revert"
	// OutcomeConfusion: the user signalled they did not understand or expect
	// the action.
	OutcomeConfusion Outcome = "confusion"
	// OutcomeIPPBlock: a precondition (identity, network, permission) failed
	// before execution.
	OutcomeIPPBlock Outcome = "ipp_block"
)

// Response is a user-facing reply to a surfaced effect.
type Response string

const (
	ResponseAccepted Response = "accepted"
	ResponseRejected Response = "rejected"
	ResponseModified Response = "modified"
	ResponseIgnored  Response = "ignored"
)

// #endregion outcomes

// #region recorder

// Recorder applies outcomes to the class and trust ledgers.
type Recorder struct {
	classes  *class.Store
	trust    *TrustStore
	now      func() time.Time
	location func() string
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock overrides the recorder's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLocation overrides the location-category source.
func WithLocation(loc func() string) Option {
	return func(r *Recorder) { r.location = loc }
}

// NewRecorder creates a Recorder over the class and trust stores.
func NewRecorder(classes *class.Store, trust *TrustStore, opts ...Option) *Recorder {
	r := &Recorder{
		classes:  classes,
		trust:    trust,
		now:      time.Now,
		location: func() string { return "" },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// #endregion recorder

// #region record-outcome

// RecordOutcome bumps the class counters for one outcome. Success (direct or
// confirmed) resets decay and re-stamps the context hash — that is the only
// way decay clears. Status and health are deliberately untouched.
func (r *Recorder) RecordOutcome(eff effect.Effect, outcome Outcome) (class.Record, error) {
	cls := classify.Classify(eff)
	if _, err := r.classes.FetchOrCreate(cls); err != nil {
		return class.Record{}, err
	}

	now := r.now()
	ctxHash := drift.Current(now, r.location()).Hash()

	rec, err := r.classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
		switch outcome {
		case OutcomeSuccess:
			rc.Stats.Successes++
			r.markSuccess(rc, now, ctxHash)
		case OutcomeConfirm:
			rc.Stats.Confirmations++
			rc.Stats.Successes++
			r.markSuccess(rc, now, ctxHash)
		case OutcomeReject:
			rc.Stats.Rejections++
		case OutcomeRevert:
			rc.Stats.Reverts++
		case OutcomeConfusion:
			rc.Stats.ConfusionEvents++
		case OutcomeIPPBlock:
			rc.Stats.IPPBlocks++
		default:
			return fmt.Errorf("unknown outcome %q", outcome)
		}
		return nil
	})
	if err != nil {
		return class.Record{}, fmt.Errorf("record outcome %s for %s: %w", outcome, cls.ClassKey, err)
	}

	log.Printf("[FEEDBACK] outcome=%s class=%s successes=%d reverts=%d",
		outcome, cls.ClassKey, rec.Stats.Successes, rec.Stats.Reverts)
	return rec, nil
}

func (r *Recorder) markSuccess(rc *class.Record, now time.Time, ctxHash string) {
	t := now.UTC()
	rc.LastSuccessAt = &t
	rc.DecayScore = 0
	rc.ContextHash = ctxHash
}

// #endregion record-outcome

// #region recovery-success

// RecordRecoverySuccess closes a recovery attempt: a degraded class whose
// tentative re-offer the user confirmed returns to healthy with its attempt
// counter cleared. This is the single sanctioned path out of degraded and it
// requires a confirmed success; locked classes are out of reach here.
func (r *Recorder) RecordRecoverySuccess(eff effect.Effect) (class.Record, error) {
	cls := classify.Classify(eff)
	now := r.now()
	ctxHash := drift.Current(now, r.location()).Hash()

	rec, err := r.classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
		if rc.Health != class.HealthDegraded {
			return fmt.Errorf("class %s is %s, not degraded", rc.ClassKey, rc.Health)
		}
		rc.Stats.Confirmations++
		rc.Stats.Successes++
		r.markSuccess(rc, now, ctxHash)
		rc.Health = class.HealthHealthy
		rc.RecoveryAttempts = 0
		return nil
	})
	if err != nil {
		return class.Record{}, fmt.Errorf("record recovery success for %s: %w", cls.ClassKey, err)
	}

	log.Printf("[FEEDBACK] recovery confirmed class=%s → healthy", cls.ClassKey)
	return rec, nil
}

// #endregion recovery-success

// #region record-response

// Trust deltas per response. Bounded; the trust ledger never feeds
// authority, only timing and confidence tuning.
const (
	trustAccepted = 0.05
	trustModified = -0.02
	trustRejected = -0.10
	trustIgnored  = -0.05

	// slowResponseCutoff dampens positive trust movement when the user took
	// a long time to respond.
	slowResponseCutoff = 30 * time.Second
)

// RecordResponse maps a user-facing response onto the two ledgers. Latency
// only dampens positive trust movement; hesitation is not evidence against
// the class itself.
func (r *Recorder) RecordResponse(eff effect.Effect, resp Response, latency time.Duration) (class.Record, error) {
	delta := float32(0)
	var rec class.Record
	var err error

	switch resp {
	case ResponseAccepted:
		delta = trustAccepted
		rec, err = r.RecordOutcome(eff, OutcomeConfirm)
	case ResponseRejected:
		delta = trustRejected
		rec, err = r.RecordOutcome(eff, OutcomeReject)
	case ResponseModified:
		// A modified effect was close but not right: count the confirmation
		// without a success.
		delta = trustModified
		cls := classify.Classify(eff)
		if _, err = r.classes.FetchOrCreate(cls); err == nil {
			rec, err = r.classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
				rc.Stats.Confirmations++
				return nil
			})
		}
	case ResponseIgnored:
		// Ignored effects touch trust only; the class learned nothing.
		delta = trustIgnored
		rec, err = r.classes.FetchOrCreate(classify.Classify(eff))
	default:
		return class.Record{}, fmt.Errorf("unknown response %q", resp)
	}
	if err != nil {
		return class.Record{}, err
	}

	if delta > 0 && latency > slowResponseCutoff {
		delta /= 2
	}
	if err := r.trust.Adjust(eff.Domain, delta); err != nil {
		return class.Record{}, err
	}
	return rec, nil
}

// #endregion record-response
