// Package volatile provides Volatile, a reference with the same validator
// and watch protocol as atom.Atom but without compare-and-swap. Swaps are a
// plain read, compute and store, so concurrent writers can lose updates.
// Use it where a single goroutine owns all writes.
package volatile

import (
	"sync/atomic"

	"atomref/internal/ref"
	"atomref/internal/watch"
)

type Volatile[T any] struct {
	value    atomic.Pointer[T]
	registry *watch.Registry[T]
	meta     map[string]any
}

var _ ref.Ref[int] = (*Volatile[int])(nil)

func New[T any](initial T, meta map[string]any) *Volatile[T] {
	v := &Volatile[T]{meta: ref.CloneMeta(meta)}
	v.value.Store(&initial)
	v.registry = watch.New(v.Deref)
	return v
}

func (v *Volatile[T]) Deref() T {
	return *v.value.Load()
}

func (v *Volatile[T]) Meta() map[string]any {
	return ref.CloneMeta(v.meta)
}

func (v *Volatile[T]) SetValidator(fn ref.Validator[T]) error {
	return v.registry.SetValidator(fn)
}

func (v *Volatile[T]) Validator() ref.Validator[T] {
	return v.registry.Validator()
}

func (v *Volatile[T]) AddWatch(key any, fn ref.WatchFunc[T]) ref.Ref[T] {
	v.registry.AddWatch(key, fn)
	return v
}

func (v *Volatile[T]) RemoveWatch(key any) ref.Ref[T] {
	v.registry.RemoveWatch(key)
	return v
}

// Reset validates and stores newValue, then notifies watches.
func (v *Volatile[T]) Reset(newValue T) (T, error) {
	if err := v.registry.Validate(newValue); err != nil {
		var zero T
		return zero, err
	}
	previous := v.value.Swap(&newValue)
	return newValue, v.registry.Notify(ref.Transition[T]{
		Ref: v,
		Old: *previous,
		New: newValue,
		Op:  ref.OpReset,
	})
}

// Swap stores fn(current) without retrying. A concurrent write between
// the read and the store is overwritten.
func (v *Volatile[T]) Swap(fn func(T) T) (T, error) {
	current := v.Deref()
	candidate := fn(current)
	if err := v.registry.Validate(candidate); err != nil {
		var zero T
		return zero, err
	}
	v.value.Store(&candidate)
	return candidate, v.registry.Notify(ref.Transition[T]{
		Ref: v,
		Old: current,
		New: candidate,
		Op:  ref.OpSwap,
		Fn:  fn,
	})
}
