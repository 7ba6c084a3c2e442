package class

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/pulse/go-core/internal/classify"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS autonomy_classes (
	class_key          TEXT PRIMARY KEY,
	domain             TEXT NOT NULL,
	effect_type        TEXT NOT NULL,
	fingerprint        TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'locked',
	eligibility_score  REAL NOT NULL DEFAULT 0,
	successes          INTEGER NOT NULL DEFAULT 0,
	confirmations      INTEGER NOT NULL DEFAULT 0,
	rejections         INTEGER NOT NULL DEFAULT 0,
	reverts            INTEGER NOT NULL DEFAULT 0,
	confusion_events   INTEGER NOT NULL DEFAULT 0,
	ipp_blocks         INTEGER NOT NULL DEFAULT 0,
	decay_score        REAL NOT NULL DEFAULT 0,
	last_success_at    TEXT,
	context_hash       TEXT NOT NULL DEFAULT '',
	health_state       TEXT NOT NULL DEFAULT 'healthy',
	reverts_at_degrade INTEGER NOT NULL DEFAULT 0,
	recovery_attempts  INTEGER NOT NULL DEFAULT 0,
	user_paused        INTEGER NOT NULL DEFAULT 0,
	version            INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_autonomy_classes_domain
ON autonomy_classes(domain, effect_type);
`

// #endregion schema

// #region store

// Store persists autonomy classes in SQLite. Every read-modify-write goes
// through Mutate, which retries on version conflict so concurrent effects of
// the same class key never lose counter updates.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the pulse database with the pragmas the core
// expects and returns the shared handle.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	return db, nil
}

// NewStore runs migrations and returns a Store over db.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate autonomy_classes: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for use by other packages (audit, pulse).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region fetch-or-create

// FetchOrCreate returns the class row for a classification, lazily creating
// it on first sight. New classes start locked, healthy, score zero.
func (s *Store) FetchOrCreate(c classify.Classification) (Record, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO autonomy_classes
		 (class_key, domain, effect_type, fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ClassKey, c.Domain, string(c.EffectType), c.Fingerprint, now, now,
	)
	if err != nil {
		return Record{}, fmt.Errorf("create class %s: %w", c.ClassKey, err)
	}
	return s.Get(c.ClassKey)
}

// #endregion fetch-or-create

// #region get

// ErrNotFound is returned when a class key has never been classified.
var ErrNotFound = errors.New("autonomy class not found")

const selectColumns = `class_key, domain, effect_type, fingerprint, status,
	eligibility_score, successes, confirmations, rejections, reverts,
	confusion_events, ipp_blocks, decay_score, last_success_at, context_hash,
	health_state, reverts_at_degrade, recovery_attempts, user_paused,
	version, created_at, updated_at`

// Get reads a single class row by key.
func (s *Store) Get(classKey string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT `+selectColumns+` FROM autonomy_classes WHERE class_key = ?`, classKey,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, classKey)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get class %s: %w", classKey, err)
	}
	return rec, nil
}

// #endregion get

// #region mutate

// maxMutateRetries bounds the optimistic-concurrency retry loop.
const maxMutateRetries = 5

// Mutate applies fn to a fresh snapshot of the class row and writes it back
// only if no other writer advanced the version in between, retrying on
// conflict. fn may run more than once and must tolerate re-execution.
func (s *Store) Mutate(classKey string, fn func(*Record) error) (Record, error) {
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		rec, err := s.Get(classKey)
		if err != nil {
			return Record{}, err
		}

		if err := fn(&rec); err != nil {
			return Record{}, err
		}

		ok, err := s.update(rec)
		if err != nil {
			return Record{}, err
		}
		if ok {
			rec.Version++
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("mutate class %s: version conflict after %d attempts", classKey, maxMutateRetries)
}

// update writes rec back guarded by its version. Returns false when another
// writer won the race.
func (s *Store) update(rec Record) (bool, error) {
	var lastSuccess any
	if rec.LastSuccessAt != nil {
		lastSuccess = rec.LastSuccessAt.UTC().Format(time.RFC3339Nano)
	}
	userPaused := 0
	if rec.UserPaused {
		userPaused = 1
	}

	res, err := s.db.Exec(
		`UPDATE autonomy_classes SET
			status = ?, eligibility_score = ?,
			successes = ?, confirmations = ?, rejections = ?, reverts = ?,
			confusion_events = ?, ipp_blocks = ?,
			decay_score = ?, last_success_at = ?, context_hash = ?,
			health_state = ?, reverts_at_degrade = ?, recovery_attempts = ?,
			user_paused = ?, version = version + 1, updated_at = ?
		 WHERE class_key = ? AND version = ?`,
		string(rec.Status), rec.EligibilityScore,
		rec.Stats.Successes, rec.Stats.Confirmations, rec.Stats.Rejections, rec.Stats.Reverts,
		rec.Stats.ConfusionEvents, rec.Stats.IPPBlocks,
		rec.DecayScore, lastSuccess, rec.ContextHash,
		string(rec.Health), rec.RevertsAtDegrade, rec.RecoveryAttempts,
		userPaused, time.Now().UTC().Format(time.RFC3339Nano),
		rec.ClassKey, rec.Version,
	)
	if err != nil {
		return false, fmt.Errorf("update class %s: %w", rec.ClassKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// #endregion mutate

// #region list

// List returns the most recently updated classes.
func (s *Store) List(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM autonomy_classes ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list

// #region scan

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var lastSuccess sql.NullString
	var userPaused int
	var createdStr, updatedStr string

	err := row.Scan(
		&rec.ClassKey, &rec.Domain, &rec.EffectType, &rec.Fingerprint, &rec.Status,
		&rec.EligibilityScore, &rec.Stats.Successes, &rec.Stats.Confirmations,
		&rec.Stats.Rejections, &rec.Stats.Reverts, &rec.Stats.ConfusionEvents,
		&rec.Stats.IPPBlocks, &rec.DecayScore, &lastSuccess, &rec.ContextHash,
		&rec.Health, &rec.RevertsAtDegrade, &rec.RecoveryAttempts, &userPaused,
		&rec.Version, &createdStr, &updatedStr,
	)
	if err != nil {
		return Record{}, err
	}

	if lastSuccess.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSuccess.String)
		if err == nil {
			rec.LastSuccessAt = &t
		}
	}
	rec.UserPaused = userPaused == 1
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return rec, nil
}

// #endregion scan
