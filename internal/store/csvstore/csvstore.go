// Package csvstore implements the file handoff between the scraper and the
// judges: one directory per indicator family, holding CSV tables named
// {family}_{YYYY-MM-DD-HH:MM}. Readers always resolve the newest table unless
// given an explicit file name.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/store"
)

// FileLayout is the timestamp suffix of a table's file name.
const FileLayout = "2006-01-02-15:04"

// Reader reads a family's newest table. It keeps no samples between calls.
type Reader struct {
	dir       string
	file      string
	schema    indicator.Schema
	retention int
}

var _ store.Reader = (*Reader)(nil)

// NewReader reads tables for schema under dir. Retention caps how many of the
// most recent rows are returned, in case an external writer kept more.
func NewReader(dir string, schema indicator.Schema, retention int) *Reader {
	if retention <= 0 {
		retention = store.DefaultRetention
	}
	return &Reader{dir: dir, schema: schema, retention: retention}
}

// WithFile pins the reader to one table instead of the newest.
func (r *Reader) WithFile(name string) *Reader {
	cp := *r
	cp.file = name
	return &cp
}

func (r *Reader) ReadAll(ctx context.Context) ([]indicator.Sample, error) {
	op := "read " + string(r.schema.Family)

	name := r.file
	if name == "" {
		var err error
		name, err = Newest(r.dir, prefix(r.schema.Family))
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && r.file != "" {
			return nil, store.ErrEmpty
		}
		// includes a newest table rotated away between resolve and open
		return nil, fault.New(fault.Transient, op, err)
	}

	samples, err := Decode(data, r.schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return store.Tail(samples, r.retention), nil
}

func (r *Reader) Latest(ctx context.Context, k int) ([]indicator.Sample, error) {
	all, err := r.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return store.Tail(all, k), nil
}

// Newest returns the name of the most recently modified regular, non-hidden
// file in dir starting with pfx. Ties go to the lexically greater name.
// A missing dir or no candidates is store.ErrEmpty.
func Newest(dir, pfx string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", store.ErrEmpty
		}
		return "", fault.New(fault.Transient, "scan "+dir, err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, pfx) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if best == "" || mod.After(bestMod) || (mod.Equal(bestMod) && name > best) {
			best, bestMod = name, mod
		}
	}

	if best == "" {
		return "", store.ErrEmpty
	}
	return best, nil
}

// Writer is the single writer of one table. Every Append re-reads the table,
// appends, evicts beyond retention and atomically replaces the file, so the
// file is the only copy of the data.
type Writer struct {
	dir       string
	name      string
	schema    indicator.Schema
	retention int

	mu sync.Mutex
}

var _ store.Writer = (*Writer)(nil)

// NewWriter creates dir if needed and names the table after created.
func NewWriter(dir string, schema indicator.Schema, retention int, created time.Time) (*Writer, error) {
	if retention <= 0 {
		retention = store.DefaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvstore: create dir: %w", err)
	}
	return &Writer{
		dir:       dir,
		name:      prefix(schema.Family) + created.Format(FileLayout),
		schema:    schema,
		retention: retention,
	}, nil
}

func (w *Writer) Name() string { return w.name }

func (w *Writer) Path() string { return filepath.Join(w.dir, w.name) }

func (w *Writer) Append(ctx context.Context, s indicator.Sample) error {
	if err := w.schema.Validate(s); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.load()
	if err != nil {
		return err
	}
	if n := len(current); n > 0 && s.Time.Before(current[n-1].Time) {
		return fault.Integrityf("append "+string(w.schema.Family),
			"timestamp %s before newest %s", s.Time, current[n-1].Time)
	}

	next := store.Tail(append(current, s.Clone()), w.retention)
	data, err := Encode(next, w.schema)
	if err != nil {
		return err
	}
	return w.replace(data)
}

func (w *Writer) load() ([]indicator.Sample, error) {
	data, err := os.ReadFile(w.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.New(fault.Transient, "load "+w.name, err)
	}
	samples, err := Decode(data, w.schema)
	if errors.Is(err, store.ErrEmpty) {
		return nil, nil
	}
	return samples, err
}

func (w *Writer) replace(data []byte) error {
	tmp, err := os.CreateTemp(w.dir, "."+w.name+".*.tmp")
	if err != nil {
		return fmt.Errorf("csvstore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("csvstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csvstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path()); err != nil {
		return fmt.Errorf("csvstore: rename: %w", err)
	}
	return nil
}

func prefix(f indicator.Family) string { return string(f) + "_" }
