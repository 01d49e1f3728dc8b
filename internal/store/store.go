// Package store defines the SampleStore contract shared by the scraper (sole
// writer) and the judges (readers), plus an in-memory backend.
//
// Backends persist a bounded, append-ordered table per indicator family.
// Readers see either the retained samples ascending by time, ErrEmpty when
// nothing has been produced yet, a fault.Transient error when the medium is
// mid-write, or a fault.Integrity error when the data has the wrong shape.
package store

import (
	"context"
	"errors"

	"github.com/chinyancb/sbifx/internal/indicator"
)

// DefaultRetention is the number of samples kept when none is configured.
const DefaultRetention = 20

// ErrEmpty reports that the store exists but holds no samples yet.
var ErrEmpty = errors.New("store: no samples")

type Reader interface {
	// ReadAll returns every retained sample, oldest first.
	ReadAll(ctx context.Context) ([]indicator.Sample, error)
	// Latest returns up to k of the most recent samples, oldest first.
	Latest(ctx context.Context, k int) ([]indicator.Sample, error)
}

type Writer interface {
	// Append adds one sample, evicting the oldest when retention is exceeded.
	Append(ctx context.Context, s indicator.Sample) error
}

type Store interface {
	Reader
	Writer
}

// Tail returns the last k samples of all, oldest first.
func Tail(all []indicator.Sample, k int) []indicator.Sample {
	if k <= 0 {
		return []indicator.Sample{}
	}
	if k >= len(all) {
		return all
	}
	return all[len(all)-k:]
}
