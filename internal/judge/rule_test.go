package judge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/position"
)

var t0 = time.Date(2021, 4, 7, 17, 59, 0, 0, time.UTC)

func stochWindow(prevK, prevD, currK, currD float64) []indicator.Sample {
	return []indicator.Sample{
		indicator.NewStoch(t0, prevK, prevD),
		indicator.NewStoch(t0.Add(time.Minute), currK, currD),
	}
}

func TestStochRule(t *testing.T) {
	rule := StochRule{RowThresh: DefaultRowThresh, HighThresh: DefaultHighThresh}

	tests := []struct {
		name                       string
		prevK, prevD, currK, currD float64
		want                       position.Direction
		matched                    bool
	}{
		{"oversold cross below", 30, 25, 18, 22, position.Long, true},
		{"oversold at threshold", 30, 25, 20, 22, position.Long, true},
		{"overbought cross above", 70, 75, 85, 78, position.Short, true},
		{"overbought at threshold", 70, 75, 80, 78, position.Short, true},
		{"middle cross below", 55, 50, 45, 50, position.MiniLong, true},
		{"middle cross above", 45, 50, 55, 50, position.MiniShort, true},
		{"oversold cross above", 15, 20, 19, 18, position.Stay, false},
		{"overbought cross below", 85, 80, 81, 83, position.Stay, false},
		{"oversold without crossover", 25, 30, 18, 22, position.Stay, false},
		{"overbought without crossover", 75, 70, 85, 78, position.Stay, false},
		{"touching is not crossing", 50, 50, 45, 50, position.Stay, false},
		{"middle no cross", 40, 50, 42, 50, position.Stay, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, ev, ok := rule.Evaluate(stochWindow(tt.prevK, tt.prevD, tt.currK, tt.currD))
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, dir)
			assert.Equal(t, tt.currK, ev["pK"])
			assert.Equal(t, tt.prevD, ev["prev_pD"])
		})
	}
}

func TestStochRuleShape(t *testing.T) {
	rule := StochRule{}
	assert.Equal(t, 2, rule.Window())
	assert.Equal(t, indicator.Stoch, rule.Schema().Family)
	assert.Equal(t, 42.0, rule.Key(indicator.NewStoch(t0, 42, 10)))
}

// macdWindow builds s0..s3 from (hist, macd, signal) triples.
func macdWindow(rows ...[3]float64) []indicator.Sample {
	out := make([]indicator.Sample, len(rows))
	for i, r := range rows {
		out[i] = indicator.NewMACD(t0.Add(time.Duration(i)*time.Minute), r[0], r[1], r[2])
	}
	return out
}

func TestMACDRule(t *testing.T) {
	rule := MACDRule{HistZero: DefaultHistZero}

	tests := []struct {
		name    string
		window  []indicator.Sample
		want    position.Direction
		matched bool
	}{
		{
			"cross up out of band",
			macdWindow([3]float64{-300, -900, -600}, [3]float64{-200, -700, -500}, [3]float64{-10, -50, -40}, [3]float64{120, 120, 0}),
			position.Long, true,
		},
		{
			"cross up inside band",
			macdWindow([3]float64{-300, -900, -600}, [3]float64{-200, -700, -500}, [3]float64{-10, -50, -40}, [3]float64{50, 10, -40}),
			position.Stay, false,
		},
		{
			"cross down out of band",
			macdWindow([3]float64{300, 900, 600}, [3]float64{200, 700, 500}, [3]float64{10, 40, 30}, [3]float64{-120, -100, 20}),
			position.Short, true,
		},
		{
			"rebound up",
			macdWindow([3]float64{200, 600, 400}, [3]float64{150, 500, 350}, [3]float64{50, 450, 400}, [3]float64{150, 520, 370}),
			position.Long, true,
		},
		{
			"rebound down",
			macdWindow([3]float64{-200, -600, -400}, [3]float64{-150, -500, -350}, [3]float64{-50, -450, -400}, [3]float64{-150, -520, -370}),
			position.Short, true,
		},
		{
			"rebound without macd trough",
			macdWindow([3]float64{200, 600, 400}, [3]float64{150, 440, 290}, [3]float64{50, 450, 400}, [3]float64{150, 520, 370}),
			position.Stay, false,
		},
		{
			"trend continues",
			macdWindow([3]float64{200, 600, 400}, [3]float64{250, 700, 450}, [3]float64{300, 800, 500}, [3]float64{350, 900, 550}),
			position.Stay, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _, ok := rule.Evaluate(tt.window)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, dir)
		})
	}
}

func TestMACDRuleDiagnostics(t *testing.T) {
	rule := MACDRule{HistZero: DefaultHistZero}

	_, ev, _ := rule.Evaluate(macdWindow(
		[3]float64{0, 0, 0}, [3]float64{0, 0, 0},
		[3]float64{-10, -50, -40}, [3]float64{120, 120, 0},
	))
	assert.Equal(t, 170.0, ev["km"])
	assert.Equal(t, 40.0, ev["ks"])
	assert.Equal(t, 4.25, ev["dvms"])
	assert.Equal(t, 120.0, ev["hist"])

	_, ev, _ = rule.Evaluate(macdWindow(
		[3]float64{0, 0, 0}, [3]float64{0, 0, 0},
		[3]float64{0, 10, 5}, [3]float64{0, 20, 5},
	))
	assert.Equal(t, 0.0, ev["ks"])
	assert.Equal(t, 0.0, ev["dvms"])
}

func TestMACDRuleShape(t *testing.T) {
	rule := MACDRule{}
	assert.Equal(t, 4, rule.Window())
	assert.Equal(t, -3400.0, rule.Key(indicator.NewMACD(t0, 1, -3400, 2)))
	assert.Contains(t, rule.Columns(), "dvms")
}
