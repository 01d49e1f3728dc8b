package journal

import (
	"encoding/csv"
	"os"
	"sync"
	"time"

	"github.com/chinyancb/sbifx/internal/position"
)

var (
	callsHeader     = []string{"call_id", "family", "position", "computed_at", "evidence"}
	decisionsHeader = []string{"decision_id", "position", "committed_at", "marker", "stoch_at", "macd_at"}
)

// CSVJournal appends to two files, writing headers only into empty ones, so
// a restart continues the same trail.
type CSVJournal struct {
	mu        sync.Mutex
	calls     *csv.Writer
	decisions *csv.Writer
	cf, df    *os.File
}

func NewCSV(callsPath, decisionsPath string) (*CSVJournal, error) {
	cf, cw, err := openAppend(callsPath, callsHeader)
	if err != nil {
		return nil, err
	}
	df, dw, err := openAppend(decisionsPath, decisionsHeader)
	if err != nil {
		cf.Close()
		return nil, err
	}
	return &CSVJournal{calls: cw, decisions: dw, cf: cf, df: df}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordCall(c CallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.calls.Write([]string{
		c.ID,
		string(c.Family),
		c.Direction.String(),
		c.ComputedAt.Format(time.RFC3339Nano),
		formatEvidence(c.Evidence),
	})
	if err != nil {
		return err
	}
	j.calls.Flush()
	return j.calls.Error()
}

func (j *CSVJournal) RecordDecision(d position.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.decisions.Write([]string{
		d.ID,
		d.Direction.String(),
		d.CommittedAt.Format(time.RFC3339Nano),
		d.Marker,
		d.StochAt.Format(time.RFC3339Nano),
		d.MacdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	j.decisions.Flush()
	return j.decisions.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.calls.Flush()
	if err := j.calls.Error(); err != nil {
		return err
	}
	j.decisions.Flush()
	if err := j.decisions.Error(); err != nil {
		return err
	}

	if err := j.cf.Close(); err != nil {
		return err
	}
	return j.df.Close()
}
