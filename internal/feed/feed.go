// Package feed replays recorded indicator samples, or price candles turned
// into samples, into the sample stores at a fixed pace. It stands in for the
// scraper during dry runs.
package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/indicators"
	"github.com/chinyancb/sbifx/internal/store"
	"github.com/chinyancb/sbifx/internal/store/csvstore"
)

// Options controls how a replay behaves.
type Options struct {
	// Pace is the wait between appends. Zero appends as fast as possible.
	Pace time.Duration

	// Restamp replaces each sample's close_time with the clock at append
	// time, so a recording can be replayed into a store that already holds
	// newer rows.
	Restamp bool

	// Limit stops after this many input rows. Zero replays everything.
	Limit int

	Logger zerolog.Logger
	Clock  func() time.Time
}

// Load reads a recording in the persisted table layout (close_time plus the
// schema's columns, in any order).
func Load(path string, schema indicator.Schema) ([]indicator.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, err := csvstore.Decode(data, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// Replay appends samples to w in order. It returns how many were appended,
// stopping early when ctx is cancelled.
func Replay(ctx context.Context, w store.Writer, samples []indicator.Sample, opts Options) (int, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With().Str("component", "feed").Logger()

	n := 0
	err := pace(ctx, len(samples), opts, func(i int) error {
		s := samples[i].Clone()
		if opts.Restamp {
			s.Time = opts.Clock()
		}
		if err := w.Append(ctx, s); err != nil {
			return fmt.Errorf("append sample %d: %w", i+1, err)
		}
		n++
		log.Debug().Time("close_time", s.Time).Floats64("values", s.Values).Msg("sample appended")
		return nil
	})
	return n, err
}

// Counts is how many samples of each family a candle replay appended.
type Counts struct {
	Stoch int
	MACD  int
}

// ReplayCandles derives stochastic and MACD samples from candles and appends
// them to their stores, one candle per Pace. Candles inside the indicators'
// warmup produce nothing.
func ReplayCandles(ctx context.Context, stoch, macd store.Writer, candles []indicators.Candle, p indicators.Params, opts Options) (Counts, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With().Str("component", "feed").Logger()
	d := indicators.NewDeriver(p)

	var n Counts
	err := pace(ctx, len(candles), opts, func(i int) error {
		st, mc := d.Update(candles[i])
		if opts.Restamp {
			now := opts.Clock()
			if st != nil {
				st.Time = now
			}
			if mc != nil {
				mc.Time = now
			}
		}

		if st != nil {
			if err := stoch.Append(ctx, *st); err != nil {
				return fmt.Errorf("append stoch for candle %d: %w", i+1, err)
			}
			n.Stoch++
		}
		if mc != nil {
			if err := macd.Append(ctx, *mc); err != nil {
				return fmt.Errorf("append macd for candle %d: %w", i+1, err)
			}
			n.MACD++
		}
		log.Debug().Time("candle", candles[i].Time).Bool("stoch", st != nil).Bool("macd", mc != nil).Msg("candle replayed")
		return nil
	})
	return n, err
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// pace calls step for 0..n-1 (capped by Limit), waiting Pace between calls.
// Cancellation ends the loop without error.
func pace(ctx context.Context, n int, opts Options, step func(i int) error) error {
	if opts.Limit > 0 && opts.Limit < n {
		n = opts.Limit
	}

	var timer *time.Timer
	if opts.Pace > 0 {
		timer = time.NewTimer(opts.Pace)
		defer timer.Stop()
	}

	for i := 0; i < n; i++ {
		if i > 0 && timer != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			timer.Reset(opts.Pace)
		} else if ctx.Err() != nil {
			return nil
		}

		if err := step(i); err != nil {
			return err
		}
	}
	return nil
}
