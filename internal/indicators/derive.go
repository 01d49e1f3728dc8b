package indicators

import (
	"github.com/chinyancb/sbifx/internal/indicator"
)

// Params sets the indicator periods. Zero fields take the chart defaults.
type Params struct {
	KPeriod int
	Smooth  int
	DPeriod int

	Fast   int
	Slow   int
	Signal int
}

// DefaultParams are slow stochastic (9,3,3) and MACD (12,26,9).
var DefaultParams = Params{KPeriod: 9, Smooth: 3, DPeriod: 3, Fast: 12, Slow: 26, Signal: 9}

func (p Params) withDefaults() Params {
	d := DefaultParams
	if p.KPeriod > 0 {
		d.KPeriod = p.KPeriod
	}
	if p.Smooth > 0 {
		d.Smooth = p.Smooth
	}
	if p.DPeriod > 0 {
		d.DPeriod = p.DPeriod
	}
	if p.Fast > 0 {
		d.Fast = p.Fast
	}
	if p.Slow > 0 {
		d.Slow = p.Slow
	}
	if p.Signal > 0 {
		d.Signal = p.Signal
	}
	return d
}

// Deriver turns a candle stream into stochastic and MACD samples stamped
// with each candle's time.
type Deriver struct {
	stoch *Stochastic
	macd  *MACD
}

var (
	_ Indicator = (*Stochastic)(nil)
	_ Indicator = (*MACD)(nil)
	_ Indicator = (*ExponentialMA)(nil)
)

func NewDeriver(p Params) *Deriver {
	p = p.withDefaults()
	return &Deriver{
		stoch: NewStochastic(p.KPeriod, p.Smooth, p.DPeriod),
		macd:  NewMACD(p.Fast, p.Slow, p.Signal),
	}
}

// Update consumes c and returns the samples that are ready after it.
func (d *Deriver) Update(c Candle) (stoch, macd *indicator.Sample) {
	d.stoch.Update(c)
	d.macd.Update(c)

	if d.stoch.Ready() {
		k, dv := d.stoch.Values()
		s := indicator.NewStoch(c.Time, k, dv)
		stoch = &s
	}
	if d.macd.Ready() {
		h, m, sig := d.macd.Values()
		s := indicator.NewMACD(c.Time, h, m, sig)
		macd = &s
	}
	return stoch, macd
}

func (d *Deriver) Reset() {
	d.stoch.Reset()
	d.macd.Reset()
}
