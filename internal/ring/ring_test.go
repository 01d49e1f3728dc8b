package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferEvictionLaw(t *testing.T) {
	const capacity = 5

	for k := 0; k <= 3*capacity; k++ {
		b := New[int](capacity)
		for i := 0; i < k; i++ {
			b.Push(i)
		}

		want := []int{}
		for i := k - capacity; i < k; i++ {
			if i >= 0 {
				want = append(want, i)
			}
		}

		assert.LessOrEqual(t, b.Len(), capacity)
		assert.Equal(t, want, b.Slice(), "after %d pushes", k)
	}
}

func TestBufferPushReportsEviction(t *testing.T) {
	b := New[string](2)
	assert.False(t, b.Push("a"))
	assert.False(t, b.Push("b"))
	assert.True(t, b.Push("c"))
	assert.Equal(t, []string{"b", "c"}, b.Slice())
}

func TestBufferLast(t *testing.T) {
	b := New[int](4)
	for i := 1; i <= 6; i++ {
		b.Push(i)
	}

	assert.Equal(t, []int{5, 6}, b.Last(2))
	assert.Equal(t, []int{3, 4, 5, 6}, b.Last(10))
	assert.Equal(t, []int{}, b.Last(0))

	v, ok := b.Newest()
	assert.True(t, ok)
	assert.Equal(t, 6, v)
}

func TestBufferSliceIsCopy(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)

	s := b.Slice()
	s[0] = 99
	assert.Equal(t, []int{1, 2}, b.Slice())
}

func TestBufferReset(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Reset()
	assert.Equal(t, 0, b.Len())
	_, ok := b.Newest()
	assert.False(t, ok)
}

func TestNewClampsCapacity(t *testing.T) {
	assert.Equal(t, 1, New[int](0).Cap())
	assert.Equal(t, 1, New[int](-3).Cap())
}
