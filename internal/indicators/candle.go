package indicators

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Candle is one closed price bar.
type Candle struct {
	Time time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64 // optional
}

// ReadCandles reads rows of
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339, RFC3339Nano or "2006-01-02 15:04:05".
// A single header row ("time,...") is allowed. Empty/short rows are skipped.
func ReadCandles(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		out      []Candle
		sawFirst bool
		line     int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		c, ok, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		if n := len(out); n > 0 && !c.Time.After(out[n-1].Time) {
			return nil, fmt.Errorf("line %d: time %s not after %s", line, c.Time, out[n-1].Time)
		}
		out = append(out, c)
	}
}

// LoadCandles reads a candle CSV file.
func LoadCandles(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCandles(f)
}

func parseCandleRow(row []string) (Candle, bool, error) {
	// Need at least: time,open,high,low,close
	if len(row) < 5 {
		return Candle{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Candle{}, false, nil
	}
	t, err := parseTime(ts)
	if err != nil {
		return Candle{}, false, err
	}

	var vals [5]float64
	n := len(row)
	if n > 6 {
		n = 6
	}
	for i := 1; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return Candle{}, false, fmt.Errorf("bad value %q: %w", row[i], err)
		}
		vals[i-1] = v
	}

	c := Candle{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if c.Low > c.High || c.Close > c.High || c.Close < c.Low {
		return Candle{}, false, fmt.Errorf("inconsistent bar o=%g h=%g l=%g c=%g", c.Open, c.High, c.Low, c.Close)
	}
	return c, true, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := time.ParseInLocation(time.DateTime, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q", s)
	}
	return t, nil
}
