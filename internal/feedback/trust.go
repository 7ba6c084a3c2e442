package feedback

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const trustSchema = `
CREATE TABLE IF NOT EXISTS domain_trust (
	domain     TEXT PRIMARY KEY,
	score      REAL NOT NULL DEFAULT 0.5,
	updated_at TEXT NOT NULL
);
`

// #endregion schema

// #region trust-store

// defaultTrust is the neutral starting score for a never-seen domain.
const defaultTrust = 0.5

// TrustStore persists the per-domain trust score. This ledger tunes timing
// and confidence presentation upstream; it carries no write authority.
type TrustStore struct {
	db *sql.DB
}

// NewTrustStore initializes the domain_trust table.
func NewTrustStore(db *sql.DB) (*TrustStore, error) {
	if _, err := db.Exec(trustSchema); err != nil {
		return nil, fmt.Errorf("migrate domain_trust: %w", err)
	}
	return &TrustStore{db: db}, nil
}

// Get returns the trust score for a domain, defaulting to neutral.
func (t *TrustStore) Get(domain string) (float32, error) {
	var score float32
	err := t.db.QueryRow(`SELECT score FROM domain_trust WHERE domain = ?`, domain).Scan(&score)
	if err == sql.ErrNoRows {
		return defaultTrust, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get trust %s: %w", domain, err)
	}
	return score, nil
}

// Adjust moves a domain's trust by delta, clamped to [0,1].
func (t *TrustStore) Adjust(domain string, delta float32) error {
	cur, err := t.Get(domain)
	if err != nil {
		return err
	}
	next := cur + delta
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}

	_, err = t.db.Exec(
		`INSERT INTO domain_trust (domain, score, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		domain, next, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("adjust trust %s: %w", domain, err)
	}
	return nil
}

// #endregion trust-store
