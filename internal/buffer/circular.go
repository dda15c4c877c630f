// internal/buffer/circular.go
package buffer

import "errors"

// ErrInvalidCapacity is returned when a buffer is created or resized with a
// capacity that is not strictly positive.
var ErrInvalidCapacity = errors.New("buffer: capacity must be greater than zero")

// CircularBuffer is a fixed-capacity ring of items. Once full, every Add
// overwrites the oldest surviving item.
//
// It is not safe for concurrent use; the engine serializes access to it.
type CircularBuffer[T any] struct {
	items    []T
	head     int // index where the next Add writes
	count    int
	capacity int
}

// New creates an empty buffer holding at most capacity items.
func New[T any](capacity int) (*CircularBuffer[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int) *CircularBuffer[T] {
	b, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Add inserts item at the head in O(1), evicting the oldest item when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Items returns a newly allocated slice ordered from oldest to newest.
func (b *CircularBuffer[T]) Items() []T {
	out := make([]T, b.count)
	if b.count == 0 {
		return out
	}
	// When not full the oldest item sits at index 0.
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		out[i] = b.items[(start+i)%b.capacity]
	}
	return out
}

// First returns the oldest item.
func (b *CircularBuffer[T]) First() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	if b.count < b.capacity {
		return b.items[0], true
	}
	return b.items[b.head], true
}

// Last returns the newest item.
func (b *CircularBuffer[T]) Last() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	return b.items[(b.head-1+b.capacity)%b.capacity], true
}

// Resize changes the capacity, keeping at most the newest newCapacity items in
// chronological order. Resizing to the current capacity is a no-op.
func (b *CircularBuffer[T]) Resize(newCapacity int) error {
	if newCapacity <= 0 {
		return ErrInvalidCapacity
	}
	if newCapacity == b.capacity {
		return nil
	}

	current := b.Items()
	if len(current) > newCapacity {
		current = current[len(current)-newCapacity:]
	}

	b.items = make([]T, newCapacity)
	b.capacity = newCapacity
	b.head = 0
	b.count = 0
	for _, item := range current {
		b.Add(item)
	}
	return nil
}

// Clear empties the buffer without reallocating its storage.
func (b *CircularBuffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.count = 0
}

// Len is the number of items currently held.
func (b *CircularBuffer[T]) Len() int { return b.count }

// Cap is the maximum number of items the buffer holds.
func (b *CircularBuffer[T]) Cap() int { return b.capacity }

func (b *CircularBuffer[T]) IsFull() bool  { return b.count == b.capacity }
func (b *CircularBuffer[T]) IsEmpty() bool { return b.count == 0 }
