package judge

import (
	"math"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/position"
)

// Rule is the detection half of a judge.
type Rule interface {
	Schema() indicator.Schema
	// Window is how many of the most recent samples Evaluate needs.
	Window() int
	// Key is the value that must change between cycles for the window to be
	// evaluated again.
	Key(newest indicator.Sample) float64
	// Evaluate classifies an ascending window of exactly Window samples. The
	// evidence is returned even when no call matches.
	Evaluate(window []indicator.Sample) (position.Direction, map[string]float64, bool)
	// Columns lists the evidence keys in export order.
	Columns() []string
}

const (
	DefaultRowThresh  = 20
	DefaultHighThresh = 80
	DefaultHistZero   = 100
)

// StochRule detects %K/%D crossovers. The zone is picked by the newest %K:
// at or below RowThresh only LONG is possible, at or above HighThresh only
// SHORT, and in between the crossover is a MINI call.
type StochRule struct {
	RowThresh  float64
	HighThresh float64
}

func (r StochRule) Schema() indicator.Schema { return indicator.StochSchema }

func (r StochRule) Window() int { return 2 }

func (r StochRule) Key(s indicator.Sample) float64 {
	return indicator.StochSchema.Get(s, indicator.ColK)
}

func (r StochRule) Columns() []string {
	return []string{indicator.ColK, indicator.ColD, "prev_" + indicator.ColK, "prev_" + indicator.ColD}
}

func (r StochRule) Evaluate(w []indicator.Sample) (position.Direction, map[string]float64, bool) {
	sc := indicator.StochSchema
	prevK, prevD := sc.Get(w[0], indicator.ColK), sc.Get(w[0], indicator.ColD)
	currK, currD := sc.Get(w[1], indicator.ColK), sc.Get(w[1], indicator.ColD)

	ev := map[string]float64{
		indicator.ColK:           currK,
		indicator.ColD:           currD,
		"prev_" + indicator.ColK: prevK,
		"prev_" + indicator.ColD: prevD,
	}

	crossBelow := currK < currD && prevK > prevD
	crossAbove := currK > currD && prevK < prevD

	switch {
	case currK <= r.RowThresh:
		if crossBelow {
			return position.Long, ev, true
		}
	case currK >= r.HighThresh:
		if crossAbove {
			return position.Short, ev, true
		}
	default:
		if crossBelow {
			return position.MiniLong, ev, true
		}
		if crossAbove {
			return position.MiniShort, ev, true
		}
	}
	return position.Stay, ev, false
}

// MACDRule looks at the four newest samples s0..s3 (s3 newest).
//
// A signal-line cross between s2 and s3 is LONG (macd rises through signal)
// or SHORT (falls through it), but only once the histogram on either side of
// the cross is at least HistZero away from zero.
//
// Otherwise a rebound off the signal line is detected: the histogram leaves
// the dead zone, dips inside it at s2 while macd bottoms out, and leaves it
// again on the same side. Positive histogram gives LONG, negative SHORT.
type MACDRule struct {
	HistZero float64
}

func (r MACDRule) Schema() indicator.Schema { return indicator.MACDSchema }

func (r MACDRule) Window() int { return 4 }

func (r MACDRule) Key(s indicator.Sample) float64 {
	return indicator.MACDSchema.Get(s, indicator.ColMACD)
}

func (r MACDRule) Columns() []string {
	return []string{indicator.ColHist, indicator.ColMACD, indicator.ColSignal, "km", "ks", "dvms"}
}

func (r MACDRule) Evaluate(w []indicator.Sample) (position.Direction, map[string]float64, bool) {
	sc := indicator.MACDSchema
	var macd, signal, hist [4]float64
	for i := range w[:4] {
		macd[i] = sc.Get(w[i], indicator.ColMACD)
		signal[i] = sc.Get(w[i], indicator.ColSignal)
		hist[i] = sc.Get(w[i], indicator.ColHist)
	}

	km := macd[3] - macd[2]
	ks := signal[3] - signal[2]
	dvms := 0.0
	if ks != 0 {
		dvms = km / ks
	}
	ev := map[string]float64{
		indicator.ColHist:   hist[3],
		indicator.ColMACD:   macd[3],
		indicator.ColSignal: signal[3],
		"km":                km,
		"ks":                ks,
		"dvms":              dvms,
	}

	hz := r.HistZero
	outOfBand := math.Abs(hist[3]) >= hz || math.Abs(hist[2]) >= hz

	switch {
	case macd[2] <= signal[2] && macd[3] > signal[3] && outOfBand:
		return position.Long, ev, true
	case macd[2] >= signal[2] && macd[3] < signal[3] && outOfBand:
		return position.Short, ev, true
	case hist[1] > hz && math.Abs(hist[2]) < hz && hist[3] > hz &&
		macd[2] < macd[1] && macd[2] < macd[3]:
		return position.Long, ev, true
	case hist[1] < -hz && math.Abs(hist[2]) < hz && hist[3] < -hz &&
		macd[2] > macd[1] && macd[2] > macd[3]:
		return position.Short, ev, true
	}
	return position.Stay, ev, false
}
