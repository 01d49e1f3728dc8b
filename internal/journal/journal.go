// Package journal is the append-only audit trail of emitted calls and
// committed decisions.
package journal

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/position"
)

type CallRecord struct {
	ID         string
	Family     indicator.Family
	Direction  position.Direction
	ComputedAt time.Time
	Evidence   map[string]float64
}

func NewCallRecord(id string, c position.Call) CallRecord {
	return CallRecord{
		ID:         id,
		Family:     c.Family,
		Direction:  c.Direction,
		ComputedAt: c.ComputedAt,
		Evidence:   c.Clone().Evidence,
	}
}

type Journal interface {
	RecordCall(CallRecord) error
	RecordDecision(position.Decision) error
	Close() error
}

type Nop struct{}

func (Nop) RecordCall(CallRecord) error            { return nil }
func (Nop) RecordDecision(position.Decision) error { return nil }
func (Nop) Close() error                           { return nil }

// formatEvidence renders evidence as sorted key=value pairs.
func formatEvidence(ev map[string]float64) string {
	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(ev[k], 'g', -1, 64)
	}
	return strings.Join(parts, ";")
}

func parseEvidence(s string) (map[string]float64, error) {
	out := map[string]float64{}
	if s == "" {
		return out, nil
	}
	for _, p := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		out[k] = f
	}
	return out, nil
}
