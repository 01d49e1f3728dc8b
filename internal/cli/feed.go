package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/feed"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/indicators"
	"github.com/chinyancb/sbifx/internal/pipeline"
)

type feedOptions struct {
	Family  string
	File    string
	Candles string
	Pace    time.Duration
	Restamp bool
	Limit   int
	Params  indicators.Params
}

func newFeedCmd(ro *rootOptions) *cobra.Command {
	fo := &feedOptions{Params: indicators.DefaultParams}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Replay recorded samples or price candles into the sample stores",
		Long: `Stand in for the scraper during dry runs.

With --file, append the rows of a recorded table (close_time plus the
family's columns) to that family's store, one row per --pace.

With --candles, compute the stochastic and MACD from a price CSV
(time,open,high,low,close[,volume]) and append both families, one candle
per --pace.

Examples:
  sbifx feed --family stoch -f testdata/stoch.csv --pace 2s --restamp
  sbifx feed --candles testdata/usdjpy_1m.csv --pace 1s --restamp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fo.File != "" {
				return runFeedSamples(cmd, ro, fo)
			}
			return runFeedCandles(cmd, ro, fo)
		},
	}

	cmd.Flags().StringVar(&fo.Family, "family", "", "indicator family for --file: stoch|macd")
	cmd.Flags().StringVarP(&fo.File, "file", "f", "", "recorded table to replay")
	cmd.Flags().StringVar(&fo.Candles, "candles", "", "price candle CSV to derive both families from")
	cmd.Flags().DurationVar(&fo.Pace, "pace", time.Second, "wait between appended rows")
	cmd.Flags().BoolVar(&fo.Restamp, "restamp", false, "replace close_time with the current time")
	cmd.Flags().IntVar(&fo.Limit, "limit", 0, "stop after this many input rows (0 = all)")
	addParamFlags(cmd, &fo.Params)
	cmd.MarkFlagsOneRequired("file", "candles")
	cmd.MarkFlagsMutuallyExclusive("file", "candles")
	cmd.MarkFlagsRequiredTogether("file", "family")

	return cmd
}

// addParamFlags registers the indicator periods used to derive samples from
// candles.
func addParamFlags(cmd *cobra.Command, p *indicators.Params) {
	cmd.Flags().IntVar(&p.KPeriod, "k-period", p.KPeriod, "stochastic %K lookback")
	cmd.Flags().IntVar(&p.Smooth, "k-smooth", p.Smooth, "stochastic %K smoothing")
	cmd.Flags().IntVar(&p.DPeriod, "d-period", p.DPeriod, "stochastic %D period")
	cmd.Flags().IntVar(&p.Fast, "fast", p.Fast, "MACD fast EMA period")
	cmd.Flags().IntVar(&p.Slow, "slow", p.Slow, "MACD slow EMA period")
	cmd.Flags().IntVar(&p.Signal, "signal", p.Signal, "MACD signal EMA period")
}

func (fo *feedOptions) replayOptions() feed.Options {
	return feed.Options{Pace: fo.Pace, Restamp: fo.Restamp, Limit: fo.Limit}
}

func runFeedSamples(cmd *cobra.Command, ro *rootOptions, fo *feedOptions) error {
	schema, err := pipeline.Schema(fo.Family)
	if err != nil {
		return err
	}
	cfg, err := ro.loadConfig()
	if err != nil {
		return err
	}

	samples, err := feed.Load(fo.File, schema)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, closer, err := pipeline.OpenWriter(ctx, cfg.Store, schema, time.Now())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closer.Close()

	opts := fo.replayOptions()
	opts.Logger = ro.logger(cfg)
	n, err := feed.Replay(ctx, w, samples, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Appended %d %s samples (%s store)\n", n, schema.Family, cfg.Store.Backend)
	return nil
}

func runFeedCandles(cmd *cobra.Command, ro *rootOptions, fo *feedOptions) error {
	cfg, err := ro.loadConfig()
	if err != nil {
		return err
	}

	candles, err := indicators.LoadCandles(fo.Candles)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	stochW, sc, err := pipeline.OpenWriter(ctx, cfg.Store, indicator.StochSchema, now)
	if err != nil {
		return fmt.Errorf("open stoch store: %w", err)
	}
	defer sc.Close()
	macdW, mc, err := pipeline.OpenWriter(ctx, cfg.Store, indicator.MACDSchema, now)
	if err != nil {
		return fmt.Errorf("open macd store: %w", err)
	}
	defer mc.Close()

	opts := fo.replayOptions()
	opts.Logger = ro.logger(cfg)
	n, err := feed.ReplayCandles(ctx, stochW, macdW, candles, fo.Params, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Derived %d stoch and %d macd samples from %s (%s store)\n",
		n.Stoch, n.MACD, fo.Candles, cfg.Store.Backend)
	return nil
}
