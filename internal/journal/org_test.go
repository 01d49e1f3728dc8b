package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/position"
)

func TestFormatDecisionOrg(t *testing.T) {
	t.Parallel()

	d := position.Decision{
		ID:          "01F2KQ8Z3V0000000000ABCDEF",
		Direction:   position.Long,
		CommittedAt: t0,
		Marker:      position.MarkerName(position.Long, t0),
		StochAt:     t0.Add(-10 * time.Second),
		MacdAt:      t0.Add(-70 * time.Second),
	}

	result := FormatDecisionOrg(d)

	assert.Contains(t, result, "** Decision: LONG (00ABCDEF)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ID: 01F2KQ8Z3V0000000000ABCDEF")
	assert.Contains(t, result, ":DIRECTION: LONG")
	assert.Contains(t, result, ":MARKER: LONG_2021-04-07T17:59:18.037976")
	assert.Contains(t, result, ":COMMITTED_AT: 2021-04-07T17:59:18Z")
	assert.Contains(t, result, ":SKEW: 1m0s")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Review")
}

func TestFormatDecisionsOrg(t *testing.T) {
	t.Parallel()

	ds := []position.Decision{
		{ID: "short", Direction: position.Long, CommittedAt: t0},
		{ID: "other", Direction: position.Short, CommittedAt: t0.Add(time.Minute)},
	}

	result := FormatDecisionsOrg(ds)
	assert.Equal(t, 2, strings.Count(result, "** Decision:"))
	assert.Contains(t, result, "** Decision: LONG (short)")
	assert.Contains(t, result, "** Decision: SHORT (other)")
	assert.Empty(t, FormatDecisionsOrg(nil))
}

func TestFormatCallsOrg(t *testing.T) {
	t.Parallel()

	result := FormatCallsOrg([]CallRecord{{
		ID:         "c1",
		Family:     indicator.Stoch,
		Direction:  position.MiniShort,
		ComputedAt: t0,
		Evidence:   map[string]float64{"pK": 55, "pD": 50},
	}})

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "| 2021-04-07T17:59:18Z | stoch | MINI_SHORT | pD=50;pK=55 |", lines[2])
}
