package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/position"
)

// GetDecision returns a single decision by ID.
func (j *SQLite) GetDecision(id string) (position.Decision, error) {
	row := j.db.QueryRow(`
		SELECT decision_id, position, committed_at, marker, stoch_at, macd_at
		FROM decisions
		WHERE decision_id = ?`, id)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return position.Decision{}, fmt.Errorf("decision %q not found", id)
	}
	return d, err
}

// ListDecisions returns the most recent limit decisions in commit order.
// limit <= 0 returns all of them.
func (j *SQLite) ListDecisions(limit int) ([]position.Decision, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(`
		SELECT decision_id, position, committed_at, marker, stoch_at, macd_at
		FROM decisions
		ORDER BY committed_at DESC, decision_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []position.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// ListCallsBetween returns calls computed within [start, end). Times are
// stored in UTC so they compare in order.
func (j *SQLite) ListCallsBetween(start, end time.Time) ([]CallRecord, error) {
	rows, err := j.db.Query(`
		SELECT call_id, family, position, computed_at, evidence
		FROM calls
		WHERE computed_at >= ? AND computed_at < ?
		ORDER BY computed_at ASC, call_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var (
			rec      CallRecord
			family   string
			dir      string
			evidence string
		)
		if err := rows.Scan(&rec.ID, &family, &dir, &rec.ComputedAt, &evidence); err != nil {
			return nil, err
		}
		rec.Family = indicator.Family(family)
		if rec.Direction, err = position.ParseDirection(dir); err != nil {
			return nil, err
		}
		if rec.Evidence, err = parseEvidence(evidence); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(s scanner) (position.Decision, error) {
	var (
		d   position.Decision
		dir string
	)
	if err := s.Scan(&d.ID, &dir, &d.CommittedAt, &d.Marker, &d.StochAt, &d.MacdAt); err != nil {
		return position.Decision{}, err
	}
	var err error
	d.Direction, err = position.ParseDirection(dir)
	return d, err
}
