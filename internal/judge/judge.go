// Package judge turns one indicator stream into position calls. A Judge owns
// the poll loop, the debounce and the bounded call history; a Rule decides
// what a window of samples means.
package judge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/id"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/journal"
	"github.com/chinyancb/sbifx/internal/metrics"
	"github.com/chinyancb/sbifx/internal/notify"
	"github.com/chinyancb/sbifx/internal/position"
	"github.com/chinyancb/sbifx/internal/store"
	"github.com/chinyancb/sbifx/internal/tracing"
)

type Options struct {
	// Interval is the sleep between cycles. Defaults to 1s.
	Interval time.Duration
	// HistorySize is n_row. Defaults to position.DefaultHistorySize.
	HistorySize int
	Notifier    notify.Notifier
	Journal     journal.Journal
	// HistoryDir, when set, receives the call history as {family}_history.csv
	// after every emitted call.
	HistoryDir string
	Logger     zerolog.Logger
	Clock      func() time.Time
}

type Judge struct {
	rule    Rule
	family  indicator.Family
	src     store.Reader
	history *position.History
	opts    Options
	log     zerolog.Logger

	haveKey bool
	lastKey float64
	// newest sample time seen; a table that goes back in time is mid-write
	lastAt time.Time
}

func New(rule Rule, src store.Reader, opts Options) *Judge {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	family := rule.Schema().Family
	return &Judge{
		rule:    rule,
		family:  family,
		src:     src,
		history: position.NewHistory(family, opts.HistorySize),
		opts:    opts,
		log:     opts.Logger.With().Str("component", "judge").Str("family", string(family)).Logger(),
	}
}

func NewStoch(src store.Reader, rule StochRule, opts Options) *Judge {
	return New(rule, src, opts)
}

func NewMACD(src store.Reader, rule MACDRule, opts Options) *Judge {
	return New(rule, src, opts)
}

func (j *Judge) Family() indicator.Family { return j.family }

// Latest is the newest call, STAY until a crossover has been seen.
func (j *Judge) Latest() position.Call { return j.history.Latest() }

// History returns the retained calls, newest first.
func (j *Judge) History() []position.Call { return j.history.Snapshot() }

// Run steps until ctx is cancelled or a cycle fails fatally.
func (j *Judge) Run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.opts.Interval).Msg("judge started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("judge stopped")
			return nil
		case <-timer.C:
		}

		if _, _, err := j.Step(ctx); err != nil {
			return err
		}
		timer.Reset(j.opts.Interval)
	}
}

// Step runs one cycle. It reports the emitted call, if any. The only errors
// returned are fatal ones; the judge has already reset itself when it
// returns one.
func (j *Judge) Step(ctx context.Context) (position.Call, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "judge.Step")
	span.SetAttributes(attribute.String("family", string(j.family)))
	defer span.End()

	window := j.rule.Window()
	samples, err := j.src.Latest(ctx, window)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrEmpty):
		j.log.Debug().Msg("no samples yet")
		return position.Call{}, false, nil
	case !fault.Fatal(err):
		j.transient(err)
		return position.Call{}, false, nil
	case ctx.Err() != nil:
		return position.Call{}, false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return position.Call{}, false, j.fail(ctx, err)
	}

	if len(samples) < window {
		j.log.Debug().Int("have", len(samples)).Int("need", window).Msg("window not full")
		return position.Call{}, false, nil
	}
	metrics.SamplesRead.WithLabelValues(string(j.family)).Inc()

	newest := samples[len(samples)-1]
	if newest.Time.Before(j.lastAt) {
		j.transient(fault.Transientf("judge "+string(j.family),
			"newest sample %s is older than %s", newest.Time, j.lastAt))
		return position.Call{}, false, nil
	}
	j.lastAt = newest.Time

	key := j.rule.Key(newest)
	if j.haveKey && key == j.lastKey {
		return position.Call{}, false, nil
	}
	j.haveKey, j.lastKey = true, key

	dir, evidence, ok := j.rule.Evaluate(samples)
	j.log.Debug().Fields(fields(evidence)).Msg("evaluated")
	if !ok {
		return position.Call{}, false, nil
	}

	call := position.Call{
		Family:     j.family,
		Direction:  dir,
		ComputedAt: j.opts.Clock(),
		Evidence:   evidence,
	}
	j.history.Push(call)
	span.SetAttributes(attribute.String("direction", dir.String()))
	metrics.Calls.WithLabelValues(string(j.family), dir.String()).Inc()
	j.log.Info().Str("position", dir.String()).Fields(fields(evidence)).Msg("position call")

	if err := j.opts.Journal.RecordCall(journal.NewCallRecord(id.At(call.ComputedAt), call)); err != nil {
		j.log.Warn().Err(err).Msg("journal call")
	}
	if j.opts.HistoryDir != "" {
		path := filepath.Join(j.opts.HistoryDir, string(j.family)+"_history.csv")
		if err := j.history.SaveCSV(path, j.rule.Columns()); err != nil {
			j.log.Warn().Err(err).Str("path", path).Msg("save history")
		}
	}
	return call, true, nil
}

// fail drops every call and the debounce state, tells the operator and hands
// back the error for the caller to stop on.
func (j *Judge) fail(ctx context.Context, err error) error {
	kind := fault.KindOf(err)
	if kind == 0 {
		err = fault.New(fault.Integrity, "judge "+string(j.family), err)
		kind = fault.Integrity
	}
	metrics.ReadErrors.WithLabelValues(string(j.family), kind.String()).Inc()

	j.history.Reset()
	j.haveKey, j.lastKey = false, 0
	j.lastAt = time.Time{}

	j.log.Error().Err(err).Msg("judge reinitialized and stopping")
	msg := fmt.Sprintf("[ERROR] %s judge stopped, state reinitialized: %v", j.family, err)
	if nerr := j.opts.Notifier.Notify(ctx, msg); nerr != nil {
		j.log.Warn().Err(nerr).Msg("notify operator")
	}
	return err
}

func (j *Judge) transient(err error) {
	metrics.ReadErrors.WithLabelValues(string(j.family), fault.Transient.String()).Inc()
	j.log.Debug().Err(err).Msg("transient read failure")
}

func fields(ev map[string]float64) map[string]any {
	out := make(map[string]any, len(ev))
	for k, v := range ev {
		out[k] = v
	}
	return out
}
