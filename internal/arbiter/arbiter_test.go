package arbiter

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/journal"
	"github.com/chinyancb/sbifx/internal/position"
)

var t0 = time.Date(2021, 4, 7, 17, 59, 0, 0, time.Local)

type fakeSource struct {
	mu sync.Mutex
	c  position.Call
}

func (s *fakeSource) Latest() position.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Clone()
}

func (s *fakeSource) set(d position.Direction, at time.Time) {
	s.mu.Lock()
	s.c = position.Call{Direction: d, ComputedAt: at}
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(_ context.Context, m string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return nil
}

type recordingJournal struct {
	journal.Nop
	decisions []position.Decision
}

func (j *recordingJournal) RecordDecision(d position.Decision) error {
	j.decisions = append(j.decisions, d)
	return nil
}

// tickingClock advances by one millisecond per reading.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

type fixture struct {
	stoch, macd *fakeSource
	dir         string
	notifier    *recordingNotifier
	journal     *recordingJournal
	arb         *Arbiter
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		stoch:    &fakeSource{c: position.Call{Family: indicator.Stoch}},
		macd:     &fakeSource{c: position.Call{Family: indicator.MACD}},
		dir:      filepath.Join(t.TempDir(), "pos"),
		notifier: &recordingNotifier{},
		journal:  &recordingJournal{},
	}
	opts.Notifier = f.notifier
	opts.Journal = f.journal
	opts.Logger = zerolog.Nop()
	if opts.Clock == nil {
		opts.Clock = tickingClock(t0.Add(time.Hour))
	}
	f.arb = New(f.stoch, f.macd, position.NewMarkers(f.dir), opts)
	return f
}

func (f *fixture) markers(t *testing.T) []position.Marker {
	t.Helper()
	list, err := position.NewMarkers(f.dir).List()
	require.NoError(t, err)
	return list
}

func (f *fixture) steps(t *testing.T, n int, want State) {
	t.Helper()
	for i := 0; i < n; i++ {
		got, err := f.arb.Step(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestClassify(t *testing.T) {
	call := func(d position.Direction, offset time.Duration) position.Call {
		return position.Call{Direction: d, ComputedAt: t0.Add(offset)}
	}

	tests := []struct {
		name        string
		stoch, macd position.Call
		want        State
	}{
		{"both stay", call(position.Stay, 0), call(position.Stay, 0), NoSignal},
		{"stoch stay", call(position.Stay, 0), call(position.Long, 0), NoSignal},
		{"macd stay", call(position.Short, 0), call(position.Stay, 0), NoSignal},
		{"disagree", call(position.Long, 0), call(position.Short, 0), Mismatch},
		{"mini is not full", call(position.MiniLong, 0), call(position.Long, 0), Mismatch},
		{"agree", call(position.Long, 0), call(position.Long, time.Minute), Agreement},
		{"agree at tolerance", call(position.Short, 0), call(position.Short, DefaultSkew), Agreement},
		{"agree at tolerance reversed", call(position.Short, DefaultSkew), call(position.Short, 0), Agreement},
		{"one second past tolerance", call(position.Long, 0), call(position.Long, DefaultSkew+time.Second), SkewViolation},
		{"just past tolerance", call(position.Long, 0), call(position.Long, DefaultSkew+time.Nanosecond), SkewViolation},
		{"past tolerance reversed", call(position.Long, DefaultSkew+time.Second), call(position.Long, 0), SkewViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.stoch, tt.macd, DefaultSkew))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NO_SIGNAL", NoSignal.String())
	assert.Equal(t, "SKEW_VIOLATION", SkewViolation.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestCommitsOncePerEpisode(t *testing.T) {
	f := newFixture(t, Options{})

	f.stoch.set(position.Long, t0)
	f.macd.set(position.Long, t0.Add(10*time.Second))
	f.steps(t, 10, Agreement)

	require.Len(t, f.markers(t), 1)
	assert.Equal(t, position.Long, f.markers(t)[0].Direction)
	assert.Len(t, f.notifier.msgs, 1)
	require.Len(t, f.journal.decisions, 1)
	assert.Equal(t, f.markers(t)[0].Name, f.journal.decisions[0].Marker)

	f.macd.set(position.Short, t0.Add(20*time.Second))
	f.steps(t, 1, Mismatch)

	f.macd.set(position.Long, t0.Add(30*time.Second))
	f.steps(t, 10, Agreement)

	assert.Len(t, f.markers(t), 2)
	assert.Len(t, f.notifier.msgs, 2)
	assert.Len(t, f.journal.decisions, 2)
}

func TestSkewViolationEndsEpisode(t *testing.T) {
	f := newFixture(t, Options{})

	f.stoch.set(position.Short, t0)
	f.macd.set(position.Short, t0)
	f.steps(t, 3, Agreement)

	f.macd.set(position.Short, t0.Add(DefaultSkew+time.Second))
	f.steps(t, 2, SkewViolation)

	f.stoch.set(position.Short, t0.Add(DefaultSkew))
	f.steps(t, 2, Agreement)

	assert.Len(t, f.markers(t), 2)
}

func TestNoSignalKeepsEpisodeOpen(t *testing.T) {
	f := newFixture(t, Options{})

	f.stoch.set(position.Long, t0)
	f.macd.set(position.Long, t0)
	f.steps(t, 2, Agreement)

	f.stoch.set(position.Stay, t0)
	f.steps(t, 2, NoSignal)

	f.stoch.set(position.Long, t0)
	f.steps(t, 2, Agreement)

	assert.Len(t, f.markers(t), 1)
	assert.Len(t, f.notifier.msgs, 1, "re-agreeing after a one-sided STAY is the same episode")
}

func TestSkewBoundary(t *testing.T) {
	t.Run("at tolerance commits", func(t *testing.T) {
		f := newFixture(t, Options{Skew: 185 * time.Second})
		f.stoch.set(position.Long, t0)
		f.macd.set(position.Long, t0.Add(185*time.Second))
		f.steps(t, 1, Agreement)
		assert.Len(t, f.markers(t), 1)
	})

	t.Run("one second over does not", func(t *testing.T) {
		f := newFixture(t, Options{Skew: 185 * time.Second})
		f.stoch.set(position.Long, t0)
		f.macd.set(position.Long, t0.Add(186*time.Second))
		f.steps(t, 1, SkewViolation)
		assert.Empty(t, f.markers(t))
	})
}

func TestZeroSkewNeedsSameTimestamp(t *testing.T) {
	f := newFixture(t, Options{Skew: 0, SkewSet: true})
	f.stoch.set(position.Long, t0)
	f.macd.set(position.Long, t0.Add(time.Second))
	f.steps(t, 1, SkewViolation)
	assert.Empty(t, f.markers(t))

	f.macd.set(position.Long, t0)
	f.steps(t, 1, Agreement)
	assert.Len(t, f.markers(t), 1)
}

func TestUnsetSkewDefaults(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Equal(t, DefaultSkew, f.arb.opts.Skew)

	f = newFixture(t, Options{Skew: -time.Second})
	assert.Equal(t, DefaultSkew, f.arb.opts.Skew)
}

func TestCommitFailureIsFatal(t *testing.T) {
	f := newFixture(t, Options{})
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	f.arb.markers = position.NewMarkers(filepath.Join(blocker, "pos"))

	f.stoch.set(position.Long, t0)
	f.macd.set(position.Long, t0)

	state, err := f.arb.Step(context.Background())
	assert.Equal(t, Agreement, state)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Commit))
	assert.False(t, f.arb.Status().Committed)
	require.Len(t, f.notifier.msgs, 1)
	assert.Contains(t, f.notifier.msgs[0], "[ERROR]")

	err = f.arb.Run(context.Background())
	assert.True(t, fault.Is(err, fault.Commit))
}

func TestStatusAndDecisions(t *testing.T) {
	f := newFixture(t, Options{HistorySize: 2})

	st := f.arb.Status()
	assert.Equal(t, uint64(0), st.Cycles)

	dirs := []position.Direction{position.Long, position.Short, position.Long}
	for _, d := range dirs {
		f.stoch.set(d, t0)
		f.macd.set(d, t0)
		f.steps(t, 1, Agreement)
		f.stoch.set(position.MiniShort, t0)
		f.steps(t, 1, Mismatch)
	}

	st = f.arb.Status()
	assert.Equal(t, Mismatch, st.State)
	assert.Equal(t, uint64(6), st.Cycles)
	assert.False(t, st.Committed)
	assert.Equal(t, position.MiniShort, st.Stoch.Direction)

	decs := f.arb.Decisions()
	require.Len(t, decs, 2)
	assert.Equal(t, position.Long, decs[0].Direction)
	assert.Equal(t, position.Short, decs[1].Direction)
	assert.NotEmpty(t, decs[0].ID)
	assert.True(t, decs[0].CommittedAt.After(decs[1].CommittedAt))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Options{Interval: 2 * time.Millisecond})
	f.stoch.set(position.Short, t0)
	f.macd.set(position.Short, t0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.arb.Run(ctx) }()

	require.Eventually(t, func() bool { return f.arb.Status().Cycles > 5 }, time.Second, 2*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("arbiter did not stop")
	}
	assert.Len(t, f.markers(t), 1)
}
