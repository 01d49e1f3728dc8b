package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/config"
	"github.com/chinyancb/sbifx/internal/feed"
	"github.com/chinyancb/sbifx/internal/indicators"
	"github.com/chinyancb/sbifx/internal/pipeline"
	"github.com/chinyancb/sbifx/internal/store"
	"github.com/chinyancb/sbifx/internal/tracing"
)

type runOptions struct {
	Candles string
	Pace    time.Duration
	Params  indicators.Params
}

func newRunCmd(ro *rootOptions) *cobra.Command {
	rn := &runOptions{Params: indicators.DefaultParams}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run both judges and the arbiter until interrupted",
		Long: `Start the stochastic judge, the MACD judge and the arbiter (and the status
server when status.addr is set). The run ends on SIGINT/SIGTERM, or with an
error when a position marker cannot be committed.

With --candles the samples never touch disk: both families are derived from
the price CSV inside the process, one candle per --pace, into the memory
store backend.

Examples:
  sbifx run --config sbifx.yaml
  sbifx run --config sbifx.yaml --candles testdata/usdjpy_1m.csv --pace 200ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			log := ro.logger(cfg)

			var deps pipeline.Deps
			if rn.Candles != "" {
				if deps.Feed, err = rn.candleFeed(cfg, log); err != nil {
					return err
				}
			}

			if cfg.Tracing.Enabled {
				if err := tracing.Init(Version); err != nil {
					return fmt.Errorf("init tracing: %w", err)
				}
				defer tracing.Shutdown(context.Background())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := pipeline.New(ctx, cfg, Version, log, deps)
			if err != nil {
				return err
			}
			defer p.Close()

			log.Info().
				Str("store", cfg.Store.Backend).
				Str("positions", cfg.Arbiter.PositionsDir).
				Str("notify", cfg.Notify.Kind).
				Str("journal", cfg.Journal.Type).
				Msg("sbifx started")

			if err := p.Run(ctx); err != nil {
				log.Error().Err(err).Msg("sbifx stopped with errors")
				return err
			}
			log.Info().Msg("sbifx stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&rn.Candles, "candles", "", "price candle CSV to replay in-process (memory store)")
	cmd.Flags().DurationVar(&rn.Pace, "pace", time.Second, "wait between replayed candles")
	addParamFlags(cmd, &rn.Params)

	return cmd
}

// candleFeed loads the candles up front and switches cfg to the memory
// backend that the feed writes into.
func (rn *runOptions) candleFeed(cfg *config.Config, log zerolog.Logger) (pipeline.Feed, error) {
	candles, err := indicators.LoadCandles(rn.Candles)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	cfg.Store.Backend = "memory"

	opts := feed.Options{Pace: rn.Pace, Logger: log}
	return func(ctx context.Context, stoch, macd store.Writer) error {
		n, err := feed.ReplayCandles(ctx, stoch, macd, candles, rn.Params, opts)
		log.Info().Int("stoch", n.Stoch).Int("macd", n.MACD).Str("candles", rn.Candles).Msg("candles replayed")
		return err
	}, nil
}
