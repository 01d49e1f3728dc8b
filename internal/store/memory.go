package store

import (
	"context"
	"sync"

	"github.com/chinyancb/sbifx/internal/fault"
	"github.com/chinyancb/sbifx/internal/indicator"
	"github.com/chinyancb/sbifx/internal/ring"
)

// Memory is an in-process Store backed by a ring buffer.
type Memory struct {
	schema indicator.Schema

	mu  sync.RWMutex
	buf *ring.Buffer[indicator.Sample]
}

var _ Store = (*Memory)(nil)

func NewMemory(schema indicator.Schema, retention int) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{schema: schema, buf: ring.New[indicator.Sample](retention)}
}

func (m *Memory) Append(ctx context.Context, s indicator.Sample) error {
	if err := m.schema.Validate(s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.buf.Newest(); ok && s.Time.Before(last.Time) {
		return fault.Integrityf("append "+string(m.schema.Family),
			"timestamp %s before newest %s", s.Time, last.Time)
	}
	m.buf.Push(s.Clone())
	return nil
}

func (m *Memory) ReadAll(ctx context.Context) ([]indicator.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.buf.Len() == 0 {
		return nil, ErrEmpty
	}
	return cloneAll(m.buf.Slice()), nil
}

func (m *Memory) Latest(ctx context.Context, k int) ([]indicator.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.buf.Len() == 0 {
		return nil, ErrEmpty
	}
	return cloneAll(m.buf.Last(k)), nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buf.Len()
}

func cloneAll(in []indicator.Sample) []indicator.Sample {
	out := make([]indicator.Sample, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
