package decision

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
	"github.com/danielpatrickdp/pulse/go-core/internal/config"
	"github.com/danielpatrickdp/pulse/go-core/internal/drift"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
)

// testNow is a Wednesday morning; tests pin the clock so context hashes are
// stable.
var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *class.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	classes, err := class.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(classes, config.Default(),
		WithClock(func() time.Time { return testNow }),
		WithLocation(func() string { return "home" }),
	)
	return engine, classes
}

func taskEffect(confidence float32) effect.Effect {
	return effect.Effect{
		ID: "eff-1", Domain: "tasks", Type: effect.TypeCreate,
		Payload:    map[string]any{"title": "water plants"},
		Confidence: confidence,
		Source:     effect.SourceDailyRun,
	}
}

func currentTestHash() string {
	return drift.Current(testNow, "home").Hash()
}

// seed mutates the effect's class into a desired state.
func seed(t *testing.T, classes *class.Store, eff effect.Effect, fn func(*class.Record)) {
	t.Helper()
	cls := classify.Classify(eff)
	if _, err := classes.FetchOrCreate(cls); err != nil {
		t.Fatal(err)
	}
	if _, err := classes.Mutate(cls.ClassKey, func(r *class.Record) error {
		fn(r)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

// seedEligible builds a trusted, healthy, non-drifted class.
func seedEligible(t *testing.T, classes *class.Store, eff effect.Effect) {
	t.Helper()
	last := testNow.Add(-24 * time.Hour)
	seed(t, classes, eff, func(r *class.Record) {
		r.Status = class.StatusEligible
		r.Stats.Successes = 20
		r.LastSuccessAt = &last
		r.ContextHash = currentTestHash()
	})
}

func TestDecideFreshClassIsLocked(t *testing.T) {
	engine, _ := newTestEngine(t)
	d, err := engine.Decide(taskEffect(0.75), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonClassLocked {
		t.Fatalf("fresh class decision = %+v", d)
	}
}

func TestDecideAbsenceBeatsEverything(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.99)
	seedEligible(t, classes, eff)

	d, err := engine.Decide(eff, Options{IsAbsent: true})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonAbsenceDampening {
		t.Fatalf("absent decision = %+v", d)
	}
}

func TestDecidePausedClass(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.9)
	seedEligible(t, classes, eff)
	seed(t, classes, eff, func(r *class.Record) { r.Status = class.StatusPaused })

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason != ReasonClassPaused {
		t.Fatalf("paused decision = %+v", d)
	}
}

func TestDecideHealthLockedBeatsPerfectScore(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.95)
	seedEligible(t, classes, eff)
	seed(t, classes, eff, func(r *class.Record) { r.Health = class.HealthLocked })

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonHealthLocked {
		t.Fatalf("health-locked decision = %+v", d)
	}
}

func TestDecideHealthDegraded(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.9)
	seedEligible(t, classes, eff)
	seed(t, classes, eff, func(r *class.Record) {
		r.Health = class.HealthDegraded
		r.RevertsAtDegrade = r.Stats.Reverts
	})

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason != ReasonHealthDegraded {
		t.Fatalf("degraded decision = %+v", d)
	}
}

func TestDecideContextDriftNeverL1(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.9)
	seedEligible(t, classes, eff)
	seed(t, classes, eff, func(r *class.Record) { r.ContextHash = "ffffffffffffffff" })

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonContextDrift {
		t.Fatalf("drifted decision = %+v", d)
	}

	// The drift persisted as a degradation: a second evaluation reads as
	// degraded health.
	d, err = engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason != ReasonHealthDegraded {
		t.Fatalf("second drifted decision = %+v", d)
	}
}

func TestDecideUserPausedBeatsScore(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.9)
	seedEligible(t, classes, eff)
	seed(t, classes, eff, func(r *class.Record) { r.UserPaused = true })

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason != ReasonUserPaused {
		t.Fatalf("user-paused decision = %+v", d)
	}
}

func TestDecideL1Upgrade(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.75)
	seedEligible(t, classes, eff)

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L1 || d.Reason != ReasonL1Upgrade {
		t.Fatalf("eligible decision = %+v", d)
	}
	if d.UpgradedWriteMode != WriteAuto {
		t.Fatalf("upgraded mode = %s, want auto", d.UpgradedWriteMode)
	}
}

func TestDecideConfidenceFloorBlocksUpgrade(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.5)
	seedEligible(t, classes, eff)

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonNoUpgrade {
		t.Fatalf("low-confidence decision = %+v", d)
	}
}

func TestDecidePromotesAtMinSuccesses(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.75)
	last := testNow.Add(-24 * time.Hour)
	seed(t, classes, eff, func(r *class.Record) {
		r.Stats.Successes = config.Default().Autonomy.MinSuccessesForEligible
		r.LastSuccessAt = &last
		r.ContextHash = currentTestHash()
	})

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// 3 successes promote the status but only score 0.15: no upgrade.
	if d.Reason != ReasonNoUpgrade {
		t.Fatalf("promoted decision = %+v", d)
	}
	rec, err := classes.Get(d.ClassKey)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != class.StatusEligible {
		t.Fatalf("status = %s, want eligible", rec.Status)
	}
}

func TestDecideRecomputesStaleScore(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.75)
	seedEligible(t, classes, eff)
	// Poison the cached score; Decide must recompute from stats.
	seed(t, classes, eff, func(r *class.Record) { r.EligibilityScore = 0 })

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L1 {
		t.Fatalf("stale cached score was trusted: %+v", d)
	}
}

func TestDecideDecayDegradesStaleTrust(t *testing.T) {
	engine, classes := newTestEngine(t)
	eff := taskEffect(0.9)
	// Trusted class whose pattern stopped recurring three weeks ago:
	// decay 0.35 pushes it over the degrade threshold.
	last := testNow.AddDate(0, 0, -21)
	seed(t, classes, eff, func(r *class.Record) {
		r.Status = class.StatusEligible
		r.Stats.Successes = 20
		r.LastSuccessAt = &last
		r.ContextHash = currentTestHash()
	})

	d, err := engine.Decide(eff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Level != L0 || d.Reason != ReasonHealthDegraded {
		t.Fatalf("stale-trust decision = %+v", d)
	}
}

func TestWriteModeFor(t *testing.T) {
	cfg := config.Default().Autonomy
	cases := []struct {
		confidence float32
		want       WriteMode
	}{
		{0.9, WriteAuto},
		{0.85, WriteAuto},
		{0.75, WriteConfirm},
		{0.6, WriteConfirm},
		{0.5, WriteProposed},
		{0, WriteProposed},
	}
	for _, tc := range cases {
		if got := WriteModeFor(tc.confidence, cfg); got != tc.want {
			t.Errorf("WriteModeFor(%v) = %s, want %s", tc.confidence, got, tc.want)
		}
	}
}
