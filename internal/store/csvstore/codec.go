package csvstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/store"
)

// pandasLayout is how the legacy scraper serialized close_time.
const pandasLayout = "2006-01-02 15:04:05.999999"

// Decode parses a persisted table. Columns are located by header name so the
// legacy layout (values first, close_time last) decodes too.
//
// A zero-length buffer or one whose last line is unterminated is reported as
// fault.Transient: the writer has truncated the file and not finished yet.
// A header with no rows is store.ErrEmpty. Anything else that does not fit
// the schema is fault.Integrity.
func Decode(data []byte, schema indicator.Schema) ([]indicator.Sample, error) {
	op := "decode " + string(schema.Family)

	if len(data) == 0 {
		return nil, fault.Transientf(op, "zero-length table")
	}
	if data[len(data)-1] != '\n' {
		return nil, fault.Transientf(op, "unterminated last line")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fault.New(fault.Integrity, op, err)
	}
	if len(rows) == 0 {
		return nil, fault.Transientf(op, "no header")
	}

	timeIdx, colIdx, err := mapHeader(rows[0], schema)
	if err != nil {
		return nil, fault.New(fault.Integrity, op, err)
	}
	if len(rows) == 1 {
		return nil, store.ErrEmpty
	}

	out := make([]indicator.Sample, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		ts, err := parseTime(strings.TrimSpace(row[timeIdx]))
		if err != nil {
			return nil, fault.Integrityf(op, "line %d: %v", line, err)
		}

		vals := make([]float64, len(schema.Columns))
		for i, idx := range colIdx {
			raw := strings.TrimSpace(row[idx])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fault.Integrityf(op, "line %d: bad %s %q", line, schema.Columns[i], raw)
			}
			vals[i] = v
		}

		s := indicator.Sample{Time: ts, Values: vals}
		if err := schema.Validate(s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(out) > 0 && ts.Before(out[len(out)-1].Time) {
			return nil, fault.Integrityf(op, "line %d: %s goes backwards", line, indicator.TimeColumn)
		}
		out = append(out, s)
	}
	return out, nil
}

// Encode renders samples in the canonical layout: close_time first, then the
// schema columns. Floats use the shortest representation that parses back to
// the same value.
func Encode(samples []indicator.Sample, schema indicator.Schema) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{indicator.TimeColumn}, schema.Columns...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, s := range samples {
		row[0] = s.Time.Format(time.RFC3339Nano)
		for i, v := range s.Values {
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mapHeader(header []string, schema indicator.Schema) (int, []int, error) {
	if len(header) != len(schema.Columns)+1 {
		return 0, nil, fmt.Errorf("want %d columns, got %d (%v)", len(schema.Columns)+1, len(header), header)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := pos[name]; dup {
			return 0, nil, fmt.Errorf("duplicate column %q", name)
		}
		pos[name] = i
	}

	timeIdx, ok := pos[indicator.TimeColumn]
	if !ok {
		return 0, nil, fmt.Errorf("missing column %q", indicator.TimeColumn)
	}

	colIdx := make([]int, len(schema.Columns))
	for i, c := range schema.Columns {
		idx, ok := pos[c]
		if !ok {
			return 0, nil, fmt.Errorf("missing column %q", c)
		}
		colIdx[i] = idx
	}
	return timeIdx, colIdx, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty %s", indicator.TimeColumn)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(pandasLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s %q", indicator.TimeColumn, s)
	}
	return t, nil
}
