// Package pulse schedules the daily effect run. Idempotency is owned here:
// each (owner, calendar day) pair executes the full gating cycle at most
// once, enforced by a persisted lock row, so a racing second trigger
// observes the lock and reports skipped instead of retrying.
package pulse

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
	"github.com/danielpatrickdp/pulse/go-core/internal/gate"
)

// #region schema

const runLocksSchema = `
CREATE TABLE IF NOT EXISTS run_locks (
	owner_id     TEXT NOT NULL,
	run_day      TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	PRIMARY KEY (owner_id, run_day)
);
`

// #endregion schema

// #region runner

// maxParallelEffects bounds in-flight effects within one run. Class updates
// are optimistic-retry, so same-class races cannot lose counters.
const maxParallelEffects = 4

// Runner executes daily effect batches through the gate.
type Runner struct {
	db   *sql.DB
	exec *gate.Executor
}

// NewRunner initializes the run_locks table and returns a Runner.
func NewRunner(db *sql.DB, exec *gate.Executor) (*Runner, error) {
	if _, err := db.Exec(runLocksSchema); err != nil {
		return nil, fmt.Errorf("migrate run_locks: %w", err)
	}
	return &Runner{db: db, exec: exec}, nil
}

// #endregion runner

// #region run

// RunStatus is the terminal state of a daily run trigger.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
)

// RunResult reports one trigger of the daily run.
type RunResult struct {
	Status  RunStatus
	OwnerID string
	RunDay  string
	Results []gate.Result
}

// RunDaily executes the effect batch for one (owner, day) pair. The lock row
// is the single source of truth: whoever inserts it owns the run, everyone
// else skips.
func (r *Runner) RunDaily(ctx context.Context, ownerID string, day time.Time, effects []effect.Effect) (RunResult, error) {
	runDay := day.UTC().Format("2006-01-02")

	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO run_locks (owner_id, run_day, started_at) VALUES (?, ?, ?)`,
		ownerID, runDay, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunResult{}, fmt.Errorf("acquire run lock %s/%s: %w", ownerID, runDay, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return RunResult{}, fmt.Errorf("run lock rows affected: %w", err)
	}
	if inserted == 0 {
		log.Printf("[PULSE] run %s/%s already executed, skipping", ownerID, runDay)
		return RunResult{Status: RunSkipped, OwnerID: ownerID, RunDay: runDay}, nil
	}

	log.Printf("[PULSE] run %s/%s starting with %d effects", ownerID, runDay, len(effects))

	var mu sync.Mutex
	results := make([]gate.Result, 0, len(effects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEffects)
	for _, eff := range effects {
		eff := eff
		g.Go(func() error {
			gr, err := r.exec.Execute(gctx, eff, ownerID)
			if err != nil {
				// One failed apply does not abort the run; the result row
				// carries the failure.
				log.Printf("[PULSE] effect %s failed: %v", eff.ID, err)
			}
			mu.Lock()
			results = append(results, gr)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, err
	}

	if _, err := r.db.Exec(
		`UPDATE run_locks SET completed_at = ? WHERE owner_id = ? AND run_day = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), ownerID, runDay,
	); err != nil {
		return RunResult{}, fmt.Errorf("mark run complete %s/%s: %w", ownerID, runDay, err)
	}

	log.Printf("[PULSE] run %s/%s completed, %d results", ownerID, runDay, len(results))
	return RunResult{Status: RunCompleted, OwnerID: ownerID, RunDay: runDay, Results: results}, nil
}

// #endregion run
