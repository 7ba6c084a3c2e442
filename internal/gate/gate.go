// Package gate is the write-authority executor: the one place where a
// candidate effect either runs, waits for confirmation, or dies. Sequence
// per effect: precondition check, confidence policy, optional upgrade
// through the decision engine, domain-adapter dispatch, outcome recording,
// audit emission. Any collaborator failure is treated as a safe-default
// block; success is never assumed on error.
package gate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/danielpatrickdp/pulse/go-core/internal/audit"
	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
	"github.com/danielpatrickdp/pulse/go-core/internal/decision"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
	"github.com/danielpatrickdp/pulse/go-core/internal/feedback"
	"github.com/danielpatrickdp/pulse/go-core/internal/health"
)

// #region executor

// Executor orchestrates the write-authority sequence.
type Executor struct {
	db       *sql.DB
	engine   *decision.Engine
	classes  *class.Store
	recorder *feedback.Recorder
	adapters map[string]DomainAdapter
	pre      PreconditionChecker
	notifier Notifier
	absent   AbsenceSource
	cfg      config.Config
}

// Option customizes an Executor.
type Option func(*Executor)

// WithNotifier wires the voice collaborator.
func WithNotifier(n Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// WithAbsenceSource wires the owner-presence collaborator.
func WithAbsenceSource(a AbsenceSource) Option {
	return func(e *Executor) { e.absent = a }
}

// NewExecutor builds the gate. db must already have the audit schema
// (audit.Init) applied.
func NewExecutor(
	db *sql.DB,
	engine *decision.Engine,
	classes *class.Store,
	recorder *feedback.Recorder,
	pre PreconditionChecker,
	cfg config.Config,
	opts ...Option,
) *Executor {
	e := &Executor{
		db:       db,
		engine:   engine,
		classes:  classes,
		recorder: recorder,
		adapters: make(map[string]DomainAdapter),
		pre:      pre,
		absent:   func(string) bool { return false },
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterAdapter installs the adapter for one domain.
func (e *Executor) RegisterAdapter(domain string, a DomainAdapter) {
	e.adapters[domain] = a
}

// SetConfig swaps the threshold set (config hot-reload).
func (e *Executor) SetConfig(cfg config.Config) {
	e.cfg = cfg
	e.engine.SetConfig(cfg)
}

// #endregion executor

// #region execute

// Execute runs the full write-authority sequence for one effect. It never
// blocks on user input: confirmation-required effects return immediately
// with RequiresConfirmation set and resume through Confirm.
func (e *Executor) Execute(ctx context.Context, eff effect.Effect, ownerID string) (Result, error) {
	cls := classify.Classify(eff)

	// (a) Precondition / inability check. Fails closed, counted against the
	// class as an external block.
	if block := e.pre.Check(ctx, ownerID); block != nil {
		log.Printf("[GATE] blocked class=%s reason=%s", cls.ClassKey, block.Reason)
		if _, err := e.recorder.RecordOutcome(eff, feedback.OutcomeIPPBlock); err != nil {
			log.Printf("[GATE] failed to record ipp block: %v", err)
		}
		res := Result{
			WriteMode:      decision.WriteModeFor(eff.Confidence, e.cfg.Autonomy),
			AutonomyLevel:  decision.L0,
			DecisionReason: decision.ReasonNoUpgrade,
			ClassKey:       cls.ClassKey,
			Blocked:        true,
			BlockReason:    block.Reason,
		}
		e.logAudit(audit.KindBlock, ownerID, eff, res, block.Reason)
		return res, nil
	}

	// (b) Confidence policy resolves the initial write mode.
	mode := decision.WriteModeFor(eff.Confidence, e.cfg.Autonomy)
	level := decision.L0
	reason := decision.ReasonNoUpgrade

	// (c) Learned autonomy may upgrade, never downgrade.
	if mode != decision.WriteAuto {
		d, err := e.engine.Decide(eff, decision.Options{IsAbsent: e.absent(ownerID)})
		if err != nil {
			// Fail closed: keep the confidence-policy mode, no upgrade.
			log.Printf("[GATE] decision error class=%s: %v", cls.ClassKey, err)
		}
		level = d.Level
		reason = d.Reason
		if d.Level == decision.L1 {
			mode = d.UpgradedWriteMode
		}
	}

	res := Result{
		WriteMode:      mode,
		AutonomyLevel:  level,
		DecisionReason: reason,
		ClassKey:       cls.ClassKey,
	}

	// (d) Dispatch.
	if mode == decision.WriteAuto {
		adapter, ok := e.adapters[eff.Domain]
		if !ok {
			// Configuration gap, not a safety violation: log and drop.
			log.Printf("[GATE] no adapter for domain %q, effect %s dropped", eff.Domain, eff.ID)
			e.logAudit(audit.KindExecution, ownerID, eff, res, "unknown_domain")
			return res, nil
		}
		if err := adapter.Apply(ctx, eff); err != nil {
			e.logAudit(audit.KindExecution, ownerID, eff, res, "apply_failed")
			return res, fmt.Errorf("apply %s effect %s: %w", eff.Domain, eff.ID, err)
		}
		res.Applied = true
		res.Success = true

		// (e) Success is recorded only after the adapter returned clean.
		if _, err := e.recorder.RecordOutcome(eff, feedback.OutcomeSuccess); err != nil {
			log.Printf("[GATE] failed to record success: %v", err)
		}
		if e.notifier != nil {
			e.notifier.Speak(fmt.Sprintf("Done: %s %s", eff.Type, eff.Domain))
		}
	} else {
		res.Success = true
		res.RequiresConfirmation = mode == decision.WriteConfirm
	}

	// (f) Audit always.
	e.logAudit(audit.KindExecution, ownerID, eff, res, string(reason))
	log.Printf("[GATE] class=%s mode=%s level=%s reason=%s applied=%v",
		cls.ClassKey, mode, level, reason, res.Applied)
	return res, nil
}

// #endregion execute

// #region confirm

// Confirm resumes a confirmation-required effect after the user approved
// it. It re-enters at the domain-adapter step, not at classification. A
// confirmed success on a degraded class is the recovery path back to
// healthy.
func (e *Executor) Confirm(ctx context.Context, eff effect.Effect, ownerID string) (Result, error) {
	cls := classify.Classify(eff)
	res := Result{
		WriteMode:      decision.WriteConfirm,
		AutonomyLevel:  decision.L0,
		DecisionReason: decision.ReasonNoUpgrade,
		ClassKey:       cls.ClassKey,
	}

	adapter, ok := e.adapters[eff.Domain]
	if !ok {
		log.Printf("[GATE] no adapter for domain %q, confirmation dropped", eff.Domain)
		e.logAudit(audit.KindExecution, ownerID, eff, res, "unknown_domain")
		return res, nil
	}
	if err := adapter.Apply(ctx, eff); err != nil {
		e.logAudit(audit.KindExecution, ownerID, eff, res, "apply_failed")
		return res, fmt.Errorf("apply confirmed %s effect %s: %w", eff.Domain, eff.ID, err)
	}
	res.Applied = true
	res.Success = true

	rec, err := e.classes.Get(cls.ClassKey)
	if err == nil && rec.Health == class.HealthDegraded {
		_, err = e.recorder.RecordRecoverySuccess(eff)
	} else {
		_, err = e.recorder.RecordOutcome(eff, feedback.OutcomeConfirm)
	}
	if err != nil {
		log.Printf("[GATE] failed to record confirmation: %v", err)
	}

	e.logAudit(audit.KindExecution, ownerID, eff, res, "confirmed")
	return res, nil
}

// #endregion confirm

// #region revert

// Revert undoes a previously-applied effect through the domain adapter's
// inverse operation and records the costliest signal the scorer knows.
func (e *Executor) Revert(ctx context.Context, effectID string, eff effect.Effect) (RevertResult, error) {
	cls := classify.Classify(eff)

	adapter, ok := e.adapters[eff.Domain]
	if !ok {
		return RevertResult{}, fmt.Errorf("revert %s: no adapter for domain %q", effectID, eff.Domain)
	}

	reverted, err := adapter.Revert(ctx, eff)
	if err != nil {
		return RevertResult{}, fmt.Errorf("revert %s effect %s: %w", eff.Domain, effectID, err)
	}
	if reverted {
		if _, err := e.recorder.RecordOutcome(eff, feedback.OutcomeRevert); err != nil {
			log.Printf("[GATE] failed to record revert: %v", err)
		}
	}

	detail, _ := json.Marshal(map[string]any{"effect_id": effectID, "reverted": reverted})
	if err := audit.Log(e.db, audit.Event{
		Kind:       audit.KindRevert,
		ClassKey:   cls.ClassKey,
		Domain:     eff.Domain,
		EffectType: string(eff.Type),
		Reason:     "user_revert",
		Applied:    reverted,
		DetailJSON: string(detail),
	}); err != nil {
		log.Printf("[GATE] audit error: %v", err)
	}

	log.Printf("[GATE] revert class=%s effect=%s reverted=%v", cls.ClassKey, effectID, reverted)
	return RevertResult{Reverted: reverted}, nil
}

// #endregion revert

// #region recovery

// PermitRecovery asks whether a degraded class may be tentatively re-offered
// and, when allowed, charges one attempt and emits an audit event. State is
// otherwise unchanged; recovery completes only via a confirmed success.
func (e *Executor) PermitRecovery(classKey, ownerID string) (health.RecoveryDecision, error) {
	rec, err := e.classes.Get(classKey)
	if err != nil {
		return health.RecoveryDecision{}, err
	}

	d := health.CanAttemptRecovery(rec, e.cfg.Health.MaxRecoveryAttempts)
	if d.Allowed {
		if _, err := e.classes.Mutate(classKey, func(rc *class.Record) error {
			rc.RecoveryAttempts++
			return nil
		}); err != nil {
			return health.RecoveryDecision{}, err
		}
	}

	if err := audit.Log(e.db, audit.Event{
		Kind:     audit.KindRecovery,
		OwnerID:  ownerID,
		ClassKey: classKey,
		Reason:   d.Reason,
		Applied:  d.Allowed,
	}); err != nil {
		log.Printf("[GATE] audit error: %v", err)
	}
	return d, nil
}

// #endregion recovery

// #region audit-helper

func (e *Executor) logAudit(kind audit.Kind, ownerID string, eff effect.Effect, res Result, reason string) {
	detail, _ := json.Marshal(map[string]any{
		"effect_id":  eff.ID,
		"source":     eff.Source,
		"confidence": eff.Confidence,
	})
	if err := audit.Log(e.db, audit.Event{
		Kind:          kind,
		OwnerID:       ownerID,
		ClassKey:      res.ClassKey,
		Domain:        eff.Domain,
		EffectType:    string(eff.Type),
		WriteMode:     string(res.WriteMode),
		AutonomyLevel: string(res.AutonomyLevel),
		Reason:        reason,
		Applied:       res.Applied,
		DetailJSON:    string(detail),
	}); err != nil {
		log.Printf("[GATE] audit error: %v", err)
	}
}

// #endregion audit-helper
