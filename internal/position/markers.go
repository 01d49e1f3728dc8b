package position

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MarkerLayout is the timestamp half of a marker name.
const MarkerLayout = "2006-01-02T15:04:05.000000"

// Marker is a committed decision as the executor sees it: an empty file
// named {DIRECTION}_{timestamp}.
type Marker struct {
	Name      string
	Direction Direction
	At        time.Time
}

// Markers is the positions directory. The arbiter is its only writer and
// never rewrites or removes an entry.
type Markers struct {
	dir string
}

func NewMarkers(dir string) *Markers {
	return &Markers{dir: dir}
}

func (m *Markers) Dir() string { return m.dir }

func MarkerName(d Direction, at time.Time) string {
	return d.String() + "_" + at.Format(MarkerLayout)
}

// ParseMarker splits a marker name back into direction and time.
func ParseMarker(name string) (Marker, error) {
	// MINI_LONG contains an underscore, so split at the last one.
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return Marker{}, fmt.Errorf("not a marker: %q", name)
	}
	d, err := ParseDirection(name[:i])
	if err != nil {
		return Marker{}, err
	}
	if !d.IsDirectional() {
		return Marker{}, fmt.Errorf("not a marker: %q", name)
	}
	at, err := time.ParseInLocation(MarkerLayout, name[i+1:], time.Local)
	if err != nil {
		return Marker{}, fmt.Errorf("not a marker: %q: %w", name, err)
	}
	return Marker{Name: name, Direction: d, At: at}, nil
}

// Create publishes a new marker. It fails rather than touch an existing file.
func (m *Markers) Create(d Direction, at time.Time) (Marker, error) {
	if !d.IsDirectional() {
		return Marker{}, fmt.Errorf("marker for %s", d)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Marker{}, err
	}

	name := MarkerName(d, at)
	f, err := os.OpenFile(filepath.Join(m.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Marker{}, err
	}
	if err := f.Close(); err != nil {
		return Marker{}, err
	}
	return Marker{Name: name, Direction: d, At: at}, nil
}

// List returns every marker in commit order. Other files are ignored.
func (m *Markers) List() ([]Marker, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Marker
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mk, err := ParseMarker(e.Name())
		if err != nil {
			continue
		}
		out = append(out, mk)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Name < out[j].Name
		}
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}
