// Package ringbuf provides a fixed-capacity FIFO buffer that overwrites its
// oldest element when full.
package ringbuf

// Buffer is a bounded FIFO. It is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a buffer holding at most capacity elements.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v. When the buffer is full the oldest element is dropped and
// returned with evicted=true.
func (b *Buffer[T]) Push(v T) (dropped T, evicted bool) {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = v
		b.size++
		return dropped, false
	}
	dropped = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % capacity
	return dropped, true
}

// Len returns the number of elements held.
func (b *Buffer[T]) Len() int { return b.size }

// Items returns a copy of the elements, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Clone returns an independent copy with the same capacity.
func (b *Buffer[T]) Clone() *Buffer[T] {
	c := &Buffer[T]{items: make([]T, len(b.items)), size: b.size}
	copy(c.items, b.Items())
	return c
}
