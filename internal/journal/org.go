package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/chinyancb/sbifx/internal/position"
)

// FormatDecisionOrg renders a committed decision as an Org-mode entry with
// its facts in a PROPERTIES drawer and a Review placeholder for the operator.
func FormatDecisionOrg(d position.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Decision: %s (%s)\n", d.Direction, shortID(d.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", d.ID)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", d.Direction)
	fmt.Fprintf(&b, ":MARKER: %s\n", d.Marker)
	fmt.Fprintf(&b, ":COMMITTED_AT: %s\n", d.CommittedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":STOCH_AT: %s\n", d.StochAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":MACD_AT: %s\n", d.MacdAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":SKEW: %s\n", skew(d))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatDecisionsOrg renders multiple decisions separated by blank lines.
func FormatDecisionsOrg(ds []position.Decision) string {
	var b strings.Builder
	for i, d := range ds {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatDecisionOrg(d))
	}
	return b.String()
}

// FormatCallsOrg renders calls as one Org table.
func FormatCallsOrg(calls []CallRecord) string {
	var b strings.Builder
	b.WriteString("| computed_at | family | direction | evidence |\n")
	b.WriteString("|-------------+--------+-----------+----------|\n")
	for _, c := range calls {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			c.ComputedAt.UTC().Format(time.RFC3339), c.Family, c.Direction, formatEvidence(c.Evidence))
	}
	return b.String()
}

func skew(d position.Decision) time.Duration {
	s := d.MacdAt.Sub(d.StochAt)
	if s < 0 {
		return -s
	}
	return s
}

// shortID keeps the tail of an id; ULID prefixes repeat within a millisecond.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
