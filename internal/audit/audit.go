// Package audit writes the append-only decision trail. Every gate pass,
// block, revert, and recovery permit lands here; rows are never updated
// after creation.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	event_id       TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	owner_id       TEXT NOT NULL DEFAULT '',
	class_key      TEXT NOT NULL DEFAULT '',
	domain         TEXT NOT NULL DEFAULT '',
	effect_type    TEXT NOT NULL DEFAULT '',
	write_mode     TEXT NOT NULL DEFAULT '',
	autonomy_level TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	applied        INTEGER NOT NULL DEFAULT 0,
	detail_json    TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_class
ON audit_log(class_key, created_at);
`

// Init creates the audit_log table.
func Init(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate audit_log: %w", err)
	}
	return nil
}

// #endregion schema

// #region event

// Kind classifies an audit event.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindExecution Kind = "execution"
	KindBlock     Kind = "block"
	KindRevert    Kind = "revert"
	KindRecovery  Kind = "recovery"
	KindRun       Kind = "run"
)

// Event is a single row in the audit log.
type Event struct {
	ID            string
	Kind          Kind
	OwnerID       string
	ClassKey      string
	Domain        string
	EffectType    string
	WriteMode     string
	AutonomyLevel string
	Reason        string
	Applied       bool
	DetailJSON    string
	CreatedAt     time.Time
}

// #endregion event

// #region log

// Log appends one event. ID and CreatedAt are filled when empty.
func Log(db *sql.DB, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	applied := 0
	if ev.Applied {
		applied = 1
	}

	_, err := db.Exec(
		`INSERT INTO audit_log
		 (event_id, kind, owner_id, class_key, domain, effect_type,
		  write_mode, autonomy_level, reason, applied, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.OwnerID, ev.ClassKey, ev.Domain, ev.EffectType,
		ev.WriteMode, ev.AutonomyLevel, ev.Reason, applied,
		nullIfEmpty(ev.DetailJSON), ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log audit event: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion log

// #region query

// Recent returns the newest events, optionally filtered to one class key.
func Recent(db *sql.DB, classKey string, limit int) ([]Event, error) {
	query := `SELECT event_id, kind, owner_id, class_key, domain, effect_type,
		write_mode, autonomy_level, reason, applied, detail_json, created_at
		FROM audit_log`
	args := []any{}
	if classKey != "" {
		query += ` WHERE class_key = ?`
		args = append(args, classKey)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var applied int
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(
			&ev.ID, &ev.Kind, &ev.OwnerID, &ev.ClassKey, &ev.Domain, &ev.EffectType,
			&ev.WriteMode, &ev.AutonomyLevel, &ev.Reason, &applied, &detail, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		ev.Applied = applied == 1
		if detail.Valid {
			ev.DetailJSON = detail.String
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// #endregion query
