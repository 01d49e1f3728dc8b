// Package position holds what the judges and the arbiter produce: directional
// calls, their bounded history, committed decisions and the marker directory
// the executor watches.
package position

import (
	"fmt"
	"strings"
)

type Direction int

const (
	Stay Direction = iota
	Long
	Short
	MiniLong
	MiniShort
)

var directionNames = [...]string{
	Stay:      "STAY",
	Long:      "LONG",
	Short:     "SHORT",
	MiniLong:  "MINI_LONG",
	MiniShort: "MINI_SHORT",
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// IsDirectional reports whether d takes a side. Only STAY does not.
func (d Direction) IsDirectional() bool {
	return d != Stay
}

func ParseDirection(s string) (Direction, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range directionNames {
		if name == up {
			return Direction(i), nil
		}
	}
	return Stay, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
