// Package indicators computes the stochastic oscillator and MACD from price
// candles, for replaying recorded prices when no scraper is running.
package indicators

import "fmt"

// Indicator computes streaming values from candles.
type Indicator interface {
	// Name returns a stable identifier like "MACD(12,26,9)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c Candle)

	// Ready reports whether the values are meaningful (warmup completed).
	Ready() bool
}

// ema is an exponential moving average seeded with the simple average of
// its first period values.
type ema struct {
	period     int
	multiplier float64
	value      float64
	count      int
	warmupSum  float64
}

func newEMA(period int) ema {
	return ema{period: period, multiplier: 2.0 / float64(period+1)}
}

func (e *ema) reset() {
	e.value, e.count, e.warmupSum = 0, 0, 0
}

func (e *ema) update(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.value = e.warmupSum / float64(e.period)
		}
		return
	}
	e.value = (v-e.value)*e.multiplier + e.value
}

func (e *ema) ready() bool { return e.count >= e.period }

// ExponentialMA is a streaming Exponential Moving Average of closes.
type ExponentialMA struct {
	e ema
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{e: newEMA(period)}
}

func (m *ExponentialMA) Name() string    { return fmt.Sprintf("EMA(%d)", m.e.period) }
func (m *ExponentialMA) Warmup() int     { return m.e.period }
func (m *ExponentialMA) Reset()          { m.e.reset() }
func (m *ExponentialMA) Update(c Candle) { m.e.update(c.Close) }
func (m *ExponentialMA) Ready() bool     { return m.e.ready() }

func (m *ExponentialMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.e.value
}

// MACD is the difference of a fast and a slow EMA of closes, with an EMA of
// that difference as the signal line.
type MACD struct {
	fast, slow, signal ema
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: newEMA(fast), slow: newEMA(slow), signal: newEMA(signal)}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Warmup() int { return m.slow.period + m.signal.period - 1 }

func (m *MACD) Reset() {
	m.fast.reset()
	m.slow.reset()
	m.signal.reset()
}

func (m *MACD) Update(c Candle) {
	m.fast.update(c.Close)
	m.slow.update(c.Close)
	if m.fast.ready() && m.slow.ready() {
		m.signal.update(m.fast.value - m.slow.value)
	}
}

func (m *MACD) Ready() bool { return m.signal.ready() }

// Values returns the histogram, MACD line and signal line.
func (m *MACD) Values() (hist, macd, signal float64) {
	if !m.Ready() {
		return 0, 0, 0
	}
	macd = m.fast.value - m.slow.value
	signal = m.signal.value
	return macd - signal, macd, signal
}

// Stochastic is the slow stochastic oscillator: %K over kPeriod candles
// smoothed by a simple average of smooth values, and %D a simple average of
// dPeriod %K values.
type Stochastic struct {
	kPeriod, smooth, dPeriod int

	highs, lows []float64
	raw         []float64
	ks          []float64
}

func NewStochastic(kPeriod, smooth, dPeriod int) *Stochastic {
	if smooth < 1 {
		smooth = 1
	}
	return &Stochastic{kPeriod: kPeriod, smooth: smooth, dPeriod: dPeriod}
}

func (s *Stochastic) Name() string {
	return fmt.Sprintf("STOCH(%d,%d,%d)", s.kPeriod, s.smooth, s.dPeriod)
}

func (s *Stochastic) Warmup() int { return s.kPeriod + s.smooth + s.dPeriod - 2 }

func (s *Stochastic) Reset() {
	s.highs, s.lows, s.raw, s.ks = s.highs[:0], s.lows[:0], s.raw[:0], s.ks[:0]
}

func (s *Stochastic) Update(c Candle) {
	s.highs = push(s.highs, c.High, s.kPeriod)
	s.lows = push(s.lows, c.Low, s.kPeriod)
	if len(s.highs) < s.kPeriod {
		return
	}

	hh, ll := s.highs[0], s.lows[0]
	for i := 1; i < len(s.highs); i++ {
		hh = max(hh, s.highs[i])
		ll = min(ll, s.lows[i])
	}
	k := 50.0
	if hh > ll {
		k = 100 * (c.Close - ll) / (hh - ll)
	}
	s.raw = push(s.raw, clamp(k), s.smooth)
	if len(s.raw) < s.smooth {
		return
	}
	s.ks = push(s.ks, mean(s.raw), s.dPeriod)
}

func (s *Stochastic) Ready() bool { return len(s.ks) >= s.dPeriod }

// Values returns %K and %D, both within [0, 100].
func (s *Stochastic) Values() (k, d float64) {
	if !s.Ready() {
		return 0, 0
	}
	return clamp(s.ks[len(s.ks)-1]), clamp(mean(s.ks))
}

func push(window []float64, v float64, n int) []float64 {
	window = append(window, v)
	if len(window) > n {
		window = window[1:]
	}
	return window
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func clamp(v float64) float64 {
	return min(max(v, 0), 100)
}
