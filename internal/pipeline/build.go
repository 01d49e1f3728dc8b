package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/chinyancb/sbifx/internal/config"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/journal"
	"github.com/chinyancb/sbifx/internal/notify"
	"github.com/chinyancb/sbifx/internal/store"
	"github.com/chinyancb/sbifx/internal/store/csvstore"
	"github.com/chinyancb/sbifx/internal/store/sqlitestore"
)

// Schema returns the schema of a configured family name.
func Schema(family string) (indicator.Schema, error) {
	switch indicator.Family(family) {
	case indicator.Stoch:
		return indicator.StochSchema, nil
	case indicator.MACD:
		return indicator.MACDSchema, nil
	}
	return indicator.Schema{}, fmt.Errorf("unknown family %q (want %s or %s)", family, indicator.Stoch, indicator.MACD)
}

// ErrMemoryBackend is returned when the memory backend is opened outside a
// pipeline, where nothing else could reach the samples.
var ErrMemoryBackend = errors.New("memory store backend only lives inside a run with an in-process feed")

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenReader opens the configured backend's reader for one family. The
// closer releases the backend and must be called once the reader is done.
func OpenReader(ctx context.Context, cfg config.StoreConfig, schema indicator.Schema) (store.Reader, io.Closer, error) {
	switch cfg.Backend {
	case "csv":
		return csvstore.NewReader(cfg.FamilyDir(schema.Family), schema, cfg.Retention), nopCloser{}, nil
	case "sqlite":
		return openSQLite(ctx, cfg, schema)
	case "memory":
		return nil, nil, ErrMemoryBackend
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// OpenWriter opens the configured backend's writer for one family. A csv
// writer starts a new table named after created.
func OpenWriter(ctx context.Context, cfg config.StoreConfig, schema indicator.Schema, created time.Time) (store.Writer, io.Closer, error) {
	switch cfg.Backend {
	case "csv":
		w, err := csvstore.NewWriter(cfg.FamilyDir(schema.Family), schema, cfg.Retention, created)
		if err != nil {
			return nil, nil, err
		}
		return w, nopCloser{}, nil
	case "sqlite":
		return openSQLite(ctx, cfg, schema)
	case "memory":
		return nil, nil, ErrMemoryBackend
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func openSQLite(ctx context.Context, cfg config.StoreConfig, schema indicator.Schema) (*sqlitestore.Store, io.Closer, error) {
	db, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sample db: %w", err)
	}
	s, err := db.Family(ctx, schema, cfg.Retention)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// NewNotifier builds the operator notifier. LINE messages are also logged so
// that rate-limited ones leave a trace.
func NewNotifier(cfg config.NotifyConfig, log zerolog.Logger) notify.Notifier {
	logN := notify.NewLog(log)
	if cfg.Kind != "line" {
		return logN
	}

	var opts []notify.LineOption
	if cfg.LineURL != "" {
		opts = append(opts, notify.WithURL(cfg.LineURL))
	}
	return notify.Multi{logN, notify.NewLine(cfg.LineToken, cfg.PerMinute, opts...)}
}

// NewJournal opens the configured journal, journal.Nop when disabled.
func NewJournal(cfg config.JournalConfig) (journal.Journal, error) {
	var (
		j   journal.Journal
		err error
	)
	switch cfg.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		j, err = journal.NewCSV(cfg.CallsFile, cfg.DecisionsFile)
	case "sqlite":
		j, err = journal.NewSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	return j, nil
}
