package feedback

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/pulse/go-core/internal/class"
	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
	"github.com/danielpatrickdp/pulse/go-core/internal/drift"
	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
)

var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestRecorder(t *testing.T) (*Recorder, *class.Store, *TrustStore) {
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
	trust, err := NewTrustStore(db)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(classes, trust,
		WithClock(func() time.Time { return testNow }),
		WithLocation(func() string { return "home" }),
	)
	return r, classes, trust
}

func nearly(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}

func taskEffect() effect.Effect {
	return effect.Effect{
		ID: "eff-1", Domain: "tasks", Type: effect.TypeCreate,
		Payload: map[string]any{"title": "water plants"},
		Source:  effect.SourceDailyRun,
	}
}

func TestRecordOutcomeSuccessResetsDecay(t *testing.T) {
	r, classes, _ := newTestRecorder(t)
	eff := taskEffect()
	cls := classify.Classify(eff)

	if _, err := classes.FetchOrCreate(cls); err != nil {
		t.Fatal(err)
	}
	if _, err := classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
		rc.DecayScore = 0.4
		rc.ContextHash = "stalehash"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := r.RecordOutcome(eff, OutcomeSuccess)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats.Successes != 1 {
		t.Fatalf("successes = %d", rec.Stats.Successes)
	}
	if rec.DecayScore != 0 {
		t.Fatalf("decay not reset: %v", rec.DecayScore)
	}
	if rec.LastSuccessAt == nil || !rec.LastSuccessAt.Equal(testNow) {
		t.Fatalf("last success = %v", rec.LastSuccessAt)
	}
	if want := drift.Current(testNow, "home").Hash(); rec.ContextHash != want {
		t.Fatalf("context hash = %s, want %s", rec.ContextHash, want)
	}
}

func TestRecordOutcomeConfirmCountsBoth(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	rec, err := r.RecordOutcome(taskEffect(), OutcomeConfirm)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats.Confirmations != 1 || rec.Stats.Successes != 1 {
		t.Fatalf("stats = %+v", rec.Stats)
	}
}

func TestRecordOutcomeCounters(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	eff := taskEffect()

	cases := []struct {
		outcome Outcome
		read    func(class.Stats) int
	}{
		{OutcomeReject, func(s class.Stats) int { return s.Rejections }},
		{OutcomeRevert, func(s class.Stats) int { return s.Reverts }},
		{OutcomeConfusion, func(s class.Stats) int { return s.ConfusionEvents }},
		{OutcomeIPPBlock, func(s class.Stats) int { return s.IPPBlocks }},
	}
	for _, tc := range cases {
		rec, err := r.RecordOutcome(eff, tc.outcome)
		if err != nil {
			t.Fatal(err)
		}
		if tc.read(rec.Stats) != 1 {
			t.Fatalf("%s counter = %d, want 1", tc.outcome, tc.read(rec.Stats))
		}
	}
}

func TestRecordOutcomeUnknownOutcome(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	if _, err := r.RecordOutcome(taskEffect(), Outcome("mystery")); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}

// Outcomes never move authority state: a paused degraded class stays paused
// and degraded no matter how many successes land.
func TestRecordOutcomeNeverWritesAuthority(t *testing.T) {
	r, classes, _ := newTestRecorder(t)
	eff := taskEffect()
	cls := classify.Classify(eff)

	if _, err := classes.FetchOrCreate(cls); err != nil {
		t.Fatal(err)
	}
	if _, err := classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
		rc.Status = class.StatusPaused
		rc.Health = class.HealthDegraded
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if _, err := r.RecordOutcome(eff, OutcomeSuccess); err != nil {
			t.Fatal(err)
		}
	}
	rec, err := classes.Get(cls.ClassKey)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != class.StatusPaused || rec.Health != class.HealthDegraded {
		t.Fatalf("recorder moved authority state: %+v", rec)
	}
}

func TestRecordRecoverySuccessRestoresHealth(t *testing.T) {
	r, classes, _ := newTestRecorder(t)
	eff := taskEffect()
	cls := classify.Classify(eff)

	if _, err := classes.FetchOrCreate(cls); err != nil {
		t.Fatal(err)
	}
	if _, err := classes.Mutate(cls.ClassKey, func(rc *class.Record) error {
		rc.Health = class.HealthDegraded
		rc.RecoveryAttempts = 2
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := r.RecordRecoverySuccess(eff)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Health != class.HealthHealthy || rec.RecoveryAttempts != 0 {
		t.Fatalf("recovery left %+v", rec)
	}
	if rec.Stats.Successes != 1 || rec.Stats.Confirmations != 1 {
		t.Fatalf("recovery stats = %+v", rec.Stats)
	}
}

func TestRecordRecoverySuccessRequiresDegraded(t *testing.T) {
	r, classes, _ := newTestRecorder(t)
	eff := taskEffect()
	if _, err := classes.FetchOrCreate(classify.Classify(eff)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RecordRecoverySuccess(eff); err == nil {
		t.Fatal("healthy class accepted a recovery success")
	}
}

func TestRecordResponseAccepted(t *testing.T) {
	r, _, trust := newTestRecorder(t)
	rec, err := r.RecordResponse(taskEffect(), ResponseAccepted, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats.Confirmations != 1 || rec.Stats.Successes != 1 {
		t.Fatalf("stats = %+v", rec.Stats)
	}
	score, err := trust.Get("tasks")
	if err != nil {
		t.Fatal(err)
	}
	if !nearly(score, 0.55) {
		t.Fatalf("trust = %v, want 0.55", score)
	}
}

func TestRecordResponseSlowAcceptHalvesTrustGain(t *testing.T) {
	r, _, trust := newTestRecorder(t)
	if _, err := r.RecordResponse(taskEffect(), ResponseAccepted, time.Minute); err != nil {
		t.Fatal(err)
	}
	score, err := trust.Get("tasks")
	if err != nil {
		t.Fatal(err)
	}
	if !nearly(score, 0.525) {
		t.Fatalf("trust = %v, want 0.525", score)
	}
}

func TestRecordResponseRejected(t *testing.T) {
	r, _, trust := newTestRecorder(t)
	rec, err := r.RecordResponse(taskEffect(), ResponseRejected, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats.Rejections != 1 {
		t.Fatalf("stats = %+v", rec.Stats)
	}
	// Latency never amplifies or dampens negative movement.
	score, err := trust.Get("tasks")
	if err != nil {
		t.Fatal(err)
	}
	if !nearly(score, 0.4) {
		t.Fatalf("trust = %v, want 0.4", score)
	}
}

func TestRecordResponseModifiedCountsConfirmationOnly(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	rec, err := r.RecordResponse(taskEffect(), ResponseModified, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats.Confirmations != 1 || rec.Stats.Successes != 0 {
		t.Fatalf("stats = %+v", rec.Stats)
	}
}

func TestRecordResponseIgnoredTouchesTrustOnly(t *testing.T) {
	r, _, trust := newTestRecorder(t)
	rec, err := r.RecordResponse(taskEffect(), ResponseIgnored, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stats != (class.Stats{}) {
		t.Fatalf("ignored response moved counters: %+v", rec.Stats)
	}
	score, err := trust.Get("tasks")
	if err != nil {
		t.Fatal(err)
	}
	if !nearly(score, 0.45) {
		t.Fatalf("trust = %v, want 0.45", score)
	}
}

func TestTrustClamps(t *testing.T) {
	_, _, trust := newTestRecorder(t)
	for i := 0; i < 20; i++ {
		if err := trust.Adjust("tasks", -0.1); err != nil {
			t.Fatal(err)
		}
	}
	score, err := trust.Get("tasks")
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Fatalf("trust floor = %v", score)
	}

	for i := 0; i < 30; i++ {
		if err := trust.Adjust("tasks", 0.1); err != nil {
			t.Fatal(err)
		}
	}
	if score, _ = trust.Get("tasks"); score != 1 {
		t.Fatalf("trust ceiling = %v", score)
	}
}
