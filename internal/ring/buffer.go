// Package ring provides a fixed-capacity circular buffer that keeps the
// most recent N values.
package ring

// Buffer keeps the last Cap() values pushed into it. Push is O(1); once the
// buffer is full the oldest value is overwritten.
type Buffer[T any] struct {
	data  []T
	start int
	size  int
}

// New returns an empty buffer holding at most capacity values.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends v, dropping the oldest value when full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

// Len returns the number of stored values.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the maximum number of stored values.
func (b *Buffer[T]) Cap() int { return len(b.data) }

// Values returns a copy of the contents, oldest first.
func (b *Buffer[T]) Values() []T {
	return b.Tail(b.size)
}

// Tail returns a copy of the newest n values, oldest first.
// n is clamped to Len().
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	offset := b.size - n
	for i := range out {
		out[i] = b.data[(b.start+offset+i)%len(b.data)]
	}
	return out
}

// Reset empties the buffer without releasing its storage.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.start = 0
	b.size = 0
}
