// Package indicator describes the technical-indicator samples deposited by the
// scraper: one timestamped row of named numeric fields per observation.
package indicator

import (
	"math"
	"time"

	"github.com/chinyancb/sbifx/internal/fault"
)

// Family names an indicator stream.
type Family string

const (
	Stoch Family = "stoch"
	MACD  Family = "macd"
)

// TimeColumn is the timestamp column of the persisted table.
const TimeColumn = "close_time"

// Stochastic column names.
const (
	ColK = "pK"
	ColD = "pD"
)

// MACD column names.
const (
	ColHist   = "hist"
	ColMACD   = "macd"
	ColSignal = "signal"
)

// Sample is one observation. Values are ordered like the owning Schema's Columns.
// Samples are immutable once written; copy Values before modifying.
type Sample struct {
	Time   time.Time
	Values []float64
}

// Schema fixes the shape and valid range of a family's samples.
type Schema struct {
	Family  Family
	Columns []string

	// Bounded enables the [Min, Max] range check.
	Bounded  bool
	Min, Max float64
}

var (
	StochSchema = Schema{
		Family:  Stoch,
		Columns: []string{ColK, ColD},
		Bounded: true,
		Min:     0,
		Max:     100,
	}

	MACDSchema = Schema{
		Family:  MACD,
		Columns: []string{ColHist, ColMACD, ColSignal},
	}
)

// SchemaFor returns the schema registered for f.
func SchemaFor(f Family) (Schema, bool) {
	switch f {
	case Stoch:
		return StochSchema, true
	case MACD:
		return MACDSchema, true
	default:
		return Schema{}, false
	}
}

// Index returns the position of column name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Validate returns an Integrity fault when smp does not fit the schema.
func (s Schema) Validate(smp Sample) error {
	op := "validate " + string(s.Family)
	if smp.Time.IsZero() {
		return fault.Integrityf(op, "missing %s", TimeColumn)
	}
	if len(smp.Values) != len(s.Columns) {
		return fault.Integrityf(op, "want %d fields, got %d", len(s.Columns), len(smp.Values))
	}
	for i, v := range smp.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Integrityf(op, "%s is not finite: %v", s.Columns[i], v)
		}
		if s.Bounded && (v < s.Min || v > s.Max) {
			return fault.Integrityf(op, "%s=%v outside [%v, %v]", s.Columns[i], v, s.Min, s.Max)
		}
	}
	return nil
}

// Get returns the named field of smp under schema s.
func (s Schema) Get(smp Sample, name string) float64 {
	i := s.Index(name)
	if i < 0 || i >= len(smp.Values) {
		return math.NaN()
	}
	return smp.Values[i]
}

// Fields returns smp as a column-name keyed map.
func (s Schema) Fields(smp Sample) map[string]float64 {
	out := make(map[string]float64, len(s.Columns))
	for i, c := range s.Columns {
		if i < len(smp.Values) {
			out[c] = smp.Values[i]
		}
	}
	return out
}

// NewStoch builds a stochastic sample.
func NewStoch(t time.Time, k, d float64) Sample {
	return Sample{Time: t, Values: []float64{k, d}}
}

// NewMACD builds a MACD sample.
func NewMACD(t time.Time, hist, macd, signal float64) Sample {
	return Sample{Time: t, Values: []float64{hist, macd, signal}}
}

// Clone returns a deep copy of smp.
func (smp Sample) Clone() Sample {
	v := make([]float64, len(smp.Values))
	copy(v, smp.Values)
	return Sample{Time: smp.Time, Values: v}
}
