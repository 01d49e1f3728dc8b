// Package sqlitestore is an embedded SampleStore: one SQLite table per
// indicator family, bounded to the configured retention on every append.
// Several processes may open the same database; readers that hit a lock see
// a transient fault and retry on their next cycle.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/store"
)

// DB is a shared handle; Family returns per-family stores over it.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path in WAL mode.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Store is the SampleStore for one family.
type Store struct {
	db        *sql.DB
	schema    indicator.Schema
	retention int

	selectCols string
}

var _ store.Store = (*Store)(nil)

// Family creates the family's table if needed and returns its store.
func (d *DB) Family(ctx context.Context, schema indicator.Schema, retention int) (*Store, error) {
	if retention <= 0 {
		retention = store.DefaultRetention
	}

	cols := make([]string, len(schema.Columns))
	defs := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = quote(c)
		defs[i] = quote(c) + " REAL NOT NULL"
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	%s INTEGER NOT NULL,
	%s
)`, quote(string(schema.Family)), quote(indicator.TimeColumn), strings.Join(defs, ",\n\t"))

	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("sqlitestore: create %s: %w", schema.Family, err)
	}

	return &Store{
		db:         d.db,
		schema:     schema,
		retention:  retention,
		selectCols: quote(indicator.TimeColumn) + ", " + strings.Join(cols, ", "),
	}, nil
}

func (s *Store) Append(ctx context.Context, smp indicator.Sample) error {
	if err := s.schema.Validate(smp); err != nil {
		return err
	}
	op := "append " + string(s.schema.Family)
	table := quote(string(s.schema.Family))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer tx.Rollback()

	var newest sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT MAX(%s) FROM %s`, quote(indicator.TimeColumn), table)).Scan(&newest); err != nil {
		return classify(op, err)
	}
	if newest.Valid && smp.Time.UnixNano() < newest.Int64 {
		return fault.Integrityf(op, "timestamp %s before newest %s", smp.Time, time.Unix(0, newest.Int64))
	}

	args := make([]any, 0, len(smp.Values)+1)
	args = append(args, smp.Time.UnixNano())
	for _, v := range smp.Values {
		args = append(args, v)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, s.selectCols, placeholders), args...); err != nil {
		return classify(op, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE seq NOT IN (SELECT seq FROM %s ORDER BY seq DESC LIMIT ?)`, table, table),
		s.retention); err != nil {
		return classify(op, err)
	}

	return classify(op, tx.Commit())
}

func (s *Store) ReadAll(ctx context.Context) ([]indicator.Sample, error) {
	return s.Latest(ctx, s.retention)
}

func (s *Store) Latest(ctx context.Context, k int) ([]indicator.Sample, error) {
	op := "read " + string(s.schema.Family)
	if k > s.retention {
		k = s.retention
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM (SELECT seq, %s FROM %s ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`,
		s.selectCols, s.selectCols, quote(string(s.schema.Family))), k)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []indicator.Sample
	for rows.Next() {
		var ns int64
		vals := make([]float64, len(s.schema.Columns))
		dest := make([]any, 0, len(vals)+1)
		dest = append(dest, &ns)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fault.New(fault.Integrity, op, err)
		}

		smp := indicator.Sample{Time: time.Unix(0, ns), Values: vals}
		if err := s.schema.Validate(smp); err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}

	if len(out) == 0 {
		return nil, store.ErrEmpty
	}
	return out, nil
}

// classify maps lock contention to a transient fault and leaves other errors
// unclassified, which callers treat as fatal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fault.New(fault.Transient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
