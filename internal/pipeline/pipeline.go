// Package pipeline assembles the judges and the arbiter from configuration
// and supervises them as one process run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chinyancb/sbifx/internal/arbiter"
	"github.com/chinyancb/sbifx/internal/config"
	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/journal"
	"github.com/chinyancb/sbifx/internal/judge"
	"github.com/chinyancb/sbifx/internal/notify"
	"github.com/chinyancb/sbifx/internal/position"
	"github.com/chinyancb/sbifx/internal/status"
	"github.com/chinyancb/sbifx/internal/store"
)

type Pipeline struct {
	Stoch   *judge.Judge
	MACD    *judge.Judge
	Arbiter *arbiter.Arbiter
	Markers *position.Markers

	// Status is nil when the status server is disabled.
	Status     *status.Server
	statusAddr string

	feed    Feed
	samples struct{ stoch, macd *store.Memory }

	log     zerolog.Logger
	closers []io.Closer
}

// Feed fills the sample stores from inside the run. It is how samples reach
// the memory backend.
type Feed func(ctx context.Context, stoch, macd store.Writer) error

// Deps overrides collaborators that New would otherwise build from config.
type Deps struct {
	Notifier notify.Notifier
	Journal  journal.Journal
	// Feed is required by, and only allowed with, the memory backend.
	Feed Feed
}

// New opens the stores and journal named by cfg and wires the tasks. Close
// releases what it opened.
func New(ctx context.Context, cfg *config.Config, version string, log zerolog.Logger, deps Deps) (_ *Pipeline, err error) {
	p := &Pipeline{log: log.With().Str("component", "pipeline").Logger()}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	var stochSrc, macdSrc store.Reader
	if cfg.Store.Backend == "memory" {
		if deps.Feed == nil {
			return nil, fmt.Errorf("stores: %w", ErrMemoryBackend)
		}
		p.feed = deps.Feed
		p.samples.stoch = store.NewMemory(indicator.StochSchema, cfg.Store.Retention)
		p.samples.macd = store.NewMemory(indicator.MACDSchema, cfg.Store.Retention)
		stochSrc, macdSrc = p.samples.stoch, p.samples.macd
	} else {
		if deps.Feed != nil {
			return nil, fmt.Errorf("an in-process feed needs the memory backend, not %q", cfg.Store.Backend)
		}
		if stochSrc, err = p.open(ctx, cfg.Store, indicator.StochSchema); err != nil {
			return nil, err
		}
		if macdSrc, err = p.open(ctx, cfg.Store, indicator.MACDSchema); err != nil {
			return nil, err
		}
	}

	n := deps.Notifier
	if n == nil {
		n = NewNotifier(cfg.Notify, log)
	}
	j := deps.Journal
	if j == nil {
		if j, err = NewJournal(cfg.Journal); err != nil {
			return nil, err
		}
		p.closers = append(p.closers, j)
	}

	p.Stoch = judge.NewStoch(stochSrc, judge.StochRule{
		RowThresh:  cfg.Stoch.RowThresh,
		HighThresh: cfg.Stoch.HighThresh,
	}, judge.Options{
		Interval:    cfg.Stoch.Interval(),
		HistorySize: cfg.Stoch.NRow,
		Notifier:    n,
		Journal:     j,
		HistoryDir:  historyDir(cfg.History, indicator.Stoch),
		Logger:      log,
	})

	p.MACD = judge.NewMACD(macdSrc, judge.MACDRule{
		HistZero: cfg.MACD.HistZero,
	}, judge.Options{
		Interval:    cfg.MACD.Interval(),
		HistorySize: cfg.MACD.NRow,
		Notifier:    n,
		Journal:     j,
		HistoryDir:  historyDir(cfg.History, indicator.MACD),
		Logger:      log,
	})

	p.Markers = position.NewMarkers(cfg.Arbiter.PositionsDir)
	p.Arbiter = arbiter.New(p.Stoch, p.MACD, p.Markers, arbiterOptions(cfg.Arbiter, n, j, log))

	if cfg.Status.Addr != "" {
		p.Status = status.NewServer(p.Arbiter, p.Markers, version, log, p.Stoch, p.MACD)
		p.statusAddr = cfg.Status.Addr
	}
	return p, nil
}

func (p *Pipeline) open(ctx context.Context, cfg config.StoreConfig, schema indicator.Schema) (store.Reader, error) {
	r, c, err := OpenReader(ctx, cfg, schema)
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", schema.Family, err)
	}
	p.closers = append(p.closers, c)
	return r, nil
}

// arbiterOptions carries dlt_sec over as given; zero means the calls must
// share a timestamp.
func arbiterOptions(cfg config.ArbiterConfig, n notify.Notifier, j journal.Journal, log zerolog.Logger) arbiter.Options {
	return arbiter.Options{
		Interval:    cfg.Interval(),
		Skew:        cfg.Skew(),
		SkewSet:     true,
		HistorySize: cfg.NRow,
		Notifier:    n,
		Journal:     j,
		Logger:      log,
	}
}

func historyDir(cfg config.HistoryConfig, f indicator.Family) string {
	if cfg.Dir == "" {
		return ""
	}
	return filepath.Join(cfg.Dir, string(f))
}

// Run runs both judges, the arbiter, the feed and the status server until
// ctx is cancelled, the arbiter fails to commit or the feed fails. A judge that stops on an
// integrity fault stops alone; its error is reported once the run ends.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu        sync.Mutex
		judgeErrs []error
	)
	for _, j := range []*judge.Judge{p.Stoch, p.MACD} {
		j := j
		g.Go(func() error {
			err := j.Run(gctx)
			if err == nil {
				return nil
			}
			if !fault.Is(err, fault.Integrity) {
				return err
			}
			p.log.Error().Err(err).Str("family", string(j.Family())).Msg("judge stopped, continuing without it")
			mu.Lock()
			judgeErrs = append(judgeErrs, err)
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error { return p.Arbiter.Run(gctx) })

	if p.feed != nil {
		g.Go(func() error {
			if err := p.feed(gctx, p.samples.stoch, p.samples.macd); err != nil {
				return fmt.Errorf("feed: %w", err)
			}
			p.log.Info().Msg("feed finished")
			return nil
		})
	}

	if p.Status != nil {
		g.Go(func() error { return p.Status.Serve(gctx, p.statusAddr) })
	}

	err := g.Wait()
	mu.Lock()
	defer mu.Unlock()
	return errors.Join(append([]error{err}, judgeErrs...)...)
}

func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
