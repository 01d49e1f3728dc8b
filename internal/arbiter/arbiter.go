// Package arbiter reconciles the two judges. It commits a decision once per
// agreement episode by publishing a marker for the executor.
package arbiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/id"
	"github.com/chinyancb/sbifx/internal/journal"
	"github.com/chinyancb/sbifx/internal/metrics"
	"github.com/chinyancb/sbifx/internal/notify"
	"github.com/chinyancb/sbifx/internal/position"
	"github.com/chinyancb/sbifx/internal/ring"
	"github.com/chinyancb/sbifx/internal/tracing"
)

const (
	DefaultSkew        = 185 * time.Second
	DefaultHistorySize = 3
)

type State int

const (
	NoSignal State = iota
	Mismatch
	SkewViolation
	Agreement
)

func (s State) String() string {
	switch s {
	case NoSignal:
		return "NO_SIGNAL"
	case Mismatch:
		return "MISMATCH"
	case SkewViolation:
		return "SKEW_VIOLATION"
	case Agreement:
		return "AGREEMENT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// CallSource exposes a judge's newest call. Implementations must return a
// copy that later updates cannot touch.
type CallSource interface {
	Latest() position.Call
}

// Classify maps a pair of calls to a state. Calls within skew of each other,
// inclusive, are concurrent.
func Classify(stoch, macd position.Call, skew time.Duration) State {
	if !stoch.Direction.IsDirectional() || !macd.Direction.IsDirectional() {
		return NoSignal
	}
	if stoch.Direction != macd.Direction {
		return Mismatch
	}
	d := macd.ComputedAt.Sub(stoch.ComputedAt)
	if d < 0 {
		d = -d
	}
	if d > skew {
		return SkewViolation
	}
	return Agreement
}

type Options struct {
	Interval time.Duration
	// Skew is dlt_sec. A zero Skew selects DefaultSkew unless SkewSet, in
	// which case the two calls must carry the same timestamp.
	Skew    time.Duration
	SkewSet bool
	// HistorySize bounds Decisions. Defaults to DefaultHistorySize.
	HistorySize int
	Notifier    notify.Notifier
	Journal     journal.Journal
	Logger      zerolog.Logger
	Clock       func() time.Time
}

// Status is a point-in-time view of the arbiter.
type Status struct {
	State     State
	Stoch     position.Call
	Macd      position.Call
	Committed bool
	Cycles    uint64
	UpdatedAt time.Time
}

type Arbiter struct {
	stoch   CallSource
	macd    CallSource
	markers *position.Markers
	opts    Options
	log     zerolog.Logger

	// owned by the Step goroutine; cleared when the episode ends
	committed bool

	mu        sync.RWMutex
	status    Status
	decisions *ring.Buffer[position.Decision]
}

func New(stoch, macd CallSource, markers *position.Markers, opts Options) *Arbiter {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Skew < 0 || (opts.Skew == 0 && !opts.SkewSet) {
		opts.Skew = DefaultSkew
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
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

	return &Arbiter{
		stoch:     stoch,
		macd:      macd,
		markers:   markers,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "arbiter").Logger(),
		decisions: ring.New[position.Decision](opts.HistorySize),
	}
}

func (a *Arbiter) Run(ctx context.Context) error {
	a.log.Info().Dur("interval", a.opts.Interval).Dur("skew", a.opts.Skew).Str("dir", a.markers.Dir()).Msg("arbiter started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("arbiter stopped")
			return nil
		case <-timer.C:
		}

		if _, err := a.Step(ctx); err != nil {
			return err
		}
		timer.Reset(a.opts.Interval)
	}
}

// Step runs one arbitration cycle. The only error it returns is a
// fault.Commit when a decision could not be published.
func (a *Arbiter) Step(ctx context.Context) (State, error) {
	stoch, macd := a.stoch.Latest(), a.macd.Latest()
	state := Classify(stoch, macd, a.opts.Skew)
	metrics.ArbiterCycles.WithLabelValues(state.String()).Inc()

	var err error
	switch state {
	case NoSignal:
		// a one-sided STAY neither ends nor restarts the episode
	case Mismatch, SkewViolation:
		if a.committed {
			a.log.Info().Str("state", state.String()).
				Str("stoch", stoch.Direction.String()).Str("macd", macd.Direction.String()).
				Msg("agreement episode ended")
		}
		a.committed = false
	case Agreement:
		if !a.committed {
			err = a.commit(ctx, stoch, macd)
		}
	}

	a.mu.Lock()
	a.status = Status{
		State:     state,
		Stoch:     stoch,
		Macd:      macd,
		Committed: a.committed,
		Cycles:    a.status.Cycles + 1,
		UpdatedAt: a.opts.Clock(),
	}
	a.mu.Unlock()

	return state, err
}

func (a *Arbiter) commit(ctx context.Context, stoch, macd position.Call) error {
	ctx, span := tracing.StartSpan(ctx, "arbiter.commit")
	defer span.End()

	dir := stoch.Direction
	now := a.opts.Clock()
	span.SetAttributes(attribute.String("direction", dir.String()))

	mk, err := a.markers.Create(dir, now)
	if err != nil {
		err = fault.New(fault.Commit, "commit "+dir.String(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "marker not created")
		a.log.Error().Err(err).Msg("cannot create position marker")
		if nerr := a.opts.Notifier.Notify(ctx, fmt.Sprintf("[ERROR] position %s not committed: %v", dir, err)); nerr != nil {
			a.log.Warn().Err(nerr).Msg("notify operator")
		}
		return err
	}
	a.committed = true

	d := position.Decision{
		ID:          id.At(now),
		Direction:   dir,
		CommittedAt: now,
		Marker:      mk.Name,
		StochAt:     stoch.ComputedAt,
		MacdAt:      macd.ComputedAt,
	}
	a.mu.Lock()
	a.decisions.Push(d)
	a.mu.Unlock()

	metrics.Decisions.WithLabelValues(dir.String()).Inc()
	a.log.Info().Str("id", d.ID).Str("position", dir.String()).Str("marker", mk.Name).
		Time("stoch_at", d.StochAt).Time("macd_at", d.MacdAt).Msg("position committed")

	if err := a.opts.Journal.RecordDecision(d); err != nil {
		a.log.Warn().Err(err).Msg("journal decision")
	}

	if err := a.opts.Notifier.Notify(ctx, "[INFO] position committed: "+mk.Name); err != nil {
		a.log.Warn().Err(err).Msg("notify commit")
	}
	return nil
}

func (a *Arbiter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.status
	s.Stoch = s.Stoch.Clone()
	s.Macd = s.Macd.Clone()
	return s
}

// Decisions returns the retained decisions, newest first.
func (a *Arbiter) Decisions() []position.Decision {
	a.mu.RLock()
	defer a.mu.RUnlock()

	all := a.decisions.Slice()
	out := make([]position.Decision, len(all))
	for i := range all {
		out[len(all)-1-i] = all[i]
	}
	return out
}
