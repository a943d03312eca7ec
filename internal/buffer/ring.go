package buffer

// Ring keeps the most recent entries up to a fixed capacity.
// It is not safe for concurrent use; callers hold their own lock.
type Ring[T any] struct {
	entries []T
	start   int
	count   int
}

func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		size = 1
	}
	return &Ring[T]{
		entries: make([]T, size),
	}
}

func (r *Ring[T]) Add(entry T) {
	if r == nil || len(r.entries) == 0 {
		return
	}

	if r.count < len(r.entries) {
		index := (r.start + r.count) % len(r.entries)
		r.entries[index] = entry
		r.count++
		return
	}

	r.entries[r.start] = entry
	r.start = (r.start + 1) % len(r.entries)
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	return r.count
}

func (r *Ring[T]) Cap() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *Ring[T]) List() []T {
	return r.Tail(0)
}

// Tail returns the newest count entries in insertion order. A count of
// zero or more than Len returns everything.
func (r *Ring[T]) Tail(count int) []T {
	if r == nil || r.count == 0 {
		return nil
	}
	if count <= 0 || count > r.count {
		count = r.count
	}

	out := make([]T, count)
	skip := r.count - count
	for i := 0; i < count; i++ {
		index := (r.start + skip + i) % len(r.entries)
		out[i] = r.entries[index]
	}
	return out
}
