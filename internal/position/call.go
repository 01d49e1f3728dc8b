package position

import (
	"fmt"
	"time"

	"github.com/chinyancb/sbifx/internal/indicator"
)

// Call is one judge's verdict on its latest window.
type Call struct {
	Family     indicator.Family
	Direction  Direction
	ComputedAt time.Time
	// Evidence holds the sample values (and any diagnostics) that produced
	// the call, keyed by column name.
	Evidence map[string]float64
}

// Clone returns a copy that shares nothing with c.
func (c Call) Clone() Call {
	cp := c
	if c.Evidence != nil {
		cp.Evidence = make(map[string]float64, len(c.Evidence))
		for k, v := range c.Evidence {
			cp.Evidence[k] = v
		}
	}
	return cp
}

func (c Call) String() string {
	return fmt.Sprintf("%s %s @ %s", c.Family, c.Direction, c.ComputedAt.Format(time.RFC3339))
}

// Decision is a committed arbitration result.
type Decision struct {
	ID          string
	Direction   Direction
	CommittedAt time.Time
	Marker      string
	StochAt     time.Time
	MacdAt      time.Time
}
