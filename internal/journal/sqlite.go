package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chinyancb/sbifx/internal/position"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordCall(c CallRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO calls
		(call_id, family, position, computed_at, evidence)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(c.Family), c.Direction.String(), c.ComputedAt.UTC(), formatEvidence(c.Evidence),
	)
	return err
}

func (j *SQLite) RecordDecision(d position.Decision) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(decision_id, position, committed_at, marker, stoch_at, macd_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Direction.String(), d.CommittedAt.UTC(), d.Marker, d.StochAt.UTC(), d.MacdAt.UTC(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
