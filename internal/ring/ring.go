// Package ring provides a fixed-capacity buffer that evicts its oldest
// element when full.
package ring

// Buffer keeps the most recent Cap() values in append order.
// It is not safe for concurrent use; owners guard it themselves.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New returns a buffer holding at most capacity values. Capacity below one is
// raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Cap() int { return len(b.items) }

func (b *Buffer[T]) Len() int { return b.size }

// Push appends v and reports whether the oldest value was evicted to make room.
func (b *Buffer[T]) Push(v T) (evicted bool) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// Slice returns the retained values, oldest first, in a new slice.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns the k most recent values, oldest first.
func (b *Buffer[T]) Last(k int) []T {
	if k > b.size {
		k = b.size
	}
	if k <= 0 {
		return []T{}
	}
	out := make([]T, k)
	start := b.size - k
	for i := 0; i < k; i++ {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Newest returns the most recently pushed value.
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
