package position

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/ring"
)

// DefaultHistorySize is n_row when none is configured.
const DefaultHistorySize = 5

// JudgedAtColumn names the judgment timestamp in an exported history.
const JudgedAtColumn = "jdg_timestamp"

// History is a judge's bounded call log. The judge is its only writer; other
// goroutines read it through copies.
type History struct {
	family indicator.Family

	mu    sync.RWMutex
	calls *ring.Buffer[Call]
}

// NewHistory returns a history of capacity size holding a single STAY call.
func NewHistory(family indicator.Family, size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	h := &History{family: family, calls: ring.New[Call](size)}
	h.calls.Push(Call{Family: family, Direction: Stay})
	return h
}

func (h *History) Push(c Call) {
	h.mu.Lock()
	h.calls.Push(c.Clone())
	h.mu.Unlock()
}

// Latest returns a copy of the newest call.
func (h *History) Latest() Call {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, _ := h.calls.Newest()
	return c.Clone()
}

// Snapshot returns copies of every retained call, newest first.
func (h *History) Snapshot() []Call {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := h.calls.Slice()
	out := make([]Call, len(all))
	for i := range all {
		out[len(all)-1-i] = all[i].Clone()
	}
	return out
}

// Reset drops every call and reseeds STAY.
func (h *History) Reset() {
	h.mu.Lock()
	h.calls.Reset()
	h.calls.Push(Call{Family: h.family, Direction: Stay})
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.calls.Len()
}

// EncodeCSV renders the history newest first with a position column, the
// given evidence columns and the judgment timestamp.
func EncodeCSV(calls []Call, columns []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append(append([]string{"position"}, columns...), JudgedAtColumn)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, c := range calls {
		row[0] = c.Direction.String()
		for i, col := range columns {
			v, ok := c.Evidence[col]
			if !ok {
				row[i+1] = ""
				continue
			}
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if c.ComputedAt.IsZero() {
			row[len(row)-1] = ""
		} else {
			row[len(row)-1] = c.ComputedAt.Format(time.RFC3339Nano)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveCSV atomically replaces path with the current history.
func (h *History) SaveCSV(path string, columns []string) error {
	data, err := EncodeCSV(h.Snapshot(), columns)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
