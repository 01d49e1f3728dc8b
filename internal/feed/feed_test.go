package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/indicators"
	"github.com/chinyancb/sbifx/internal/store"
)

const recording = "pK,pD,close_time\n" +
	"25,22,2021-04-07 17:58:00.000000\n" +
	"18,22,2021-04-07 17:59:00.000000\n" +
	"30,28,2021-04-07 18:00:00.000000\n"

func writeRecording(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stoch.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	samples, err := Load(writeRecording(t, recording), indicator.StochSchema)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, []float64{18, 22}, samples[1].Values)

	_, err = Load(writeRecording(t, "pK,pD,close_time\n2021-04-07 17:58:00,180,22\n"), indicator.StochSchema)
	assert.True(t, fault.Is(err, fault.Integrity))

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), indicator.StochSchema)
	assert.Error(t, err)
}

func TestReplayAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	samples, err := Load(writeRecording(t, recording), indicator.StochSchema)
	require.NoError(t, err)

	m := store.NewMemory(indicator.StochSchema, 2)
	n, err := Replay(ctx, m, samples, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := m.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 18.0, got[0].Values[0])
	assert.Equal(t, 30.0, got[1].Values[0])
}

func TestReplayRestampAndLimit(t *testing.T) {
	ctx := context.Background()
	samples, err := Load(writeRecording(t, recording), indicator.StochSchema)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	m := store.NewMemory(indicator.StochSchema, 5)
	n, err := Replay(ctx, m, samples, Options{Restamp: true, Limit: 2, Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := m.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 2, 0, time.UTC), got[1].Time)
	assert.Equal(t, 2021, samples[0].Time.Year(), "input is not modified")
}

func TestReplayPacesAndStopsOnCancel(t *testing.T) {
	samples, err := Load(writeRecording(t, recording), indicator.StochSchema)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	m := store.NewMemory(indicator.StochSchema, 5)
	n, err := Replay(ctx, m, samples, Options{Pace: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayReportsStoreErrors(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory(indicator.StochSchema, 5)
	require.NoError(t, m.Append(ctx, indicator.NewStoch(time.Now(), 10, 10)))

	samples, err := Load(writeRecording(t, recording), indicator.StochSchema)
	require.NoError(t, err)

	n, err := Replay(ctx, m, samples, Options{})
	assert.Equal(t, 0, n)
	assert.True(t, fault.Is(err, fault.Integrity))
}

func TestReplayCandles(t *testing.T) {
	ctx := context.Background()

	var candles []indicators.Candle
	price := 100.0
	for i := 0; i < 12; i++ {
		if i%3 == 0 {
			price -= 2
		} else {
			price += 1.5
		}
		candles = append(candles, indicators.Candle{
			Time:  time.Date(2024, 1, 1, 9, i, 0, 0, time.UTC),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		})
	}

	stoch := store.NewMemory(indicator.StochSchema, 20)
	macd := store.NewMemory(indicator.MACDSchema, 20)
	params := indicators.Params{KPeriod: 3, Smooth: 1, DPeriod: 2, Fast: 2, Slow: 3, Signal: 2}

	n, err := ReplayCandles(ctx, stoch, macd, candles, params, Options{})
	require.NoError(t, err)
	assert.Equal(t, Counts{Stoch: 9, MACD: 9}, n)

	got, err := stoch.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 9)
	assert.Equal(t, candles[3].Time, got[0].Time)
	assert.Equal(t, candles[11].Time, got[8].Time)
	assert.Equal(t, 9, macd.Len())
}
