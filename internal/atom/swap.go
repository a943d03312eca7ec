package atom

import "atomref/internal/ref"

// Swap atomically replaces the value with fn(current), retrying until the
// compare-and-swap wins. fn may run many times and must be free of side
// effects. A rejected candidate ends the swap without retrying.
//
// The returned value is the committed one; it is also returned alongside a
// *ref.WatchError, since that error is reported after the commit.
func (a *Atom[T]) Swap(fn func(T) T) (T, error) {
	_, next, err := a.swap(fn, fn, nil)
	return next, err
}

// SwapVals is Swap returning both the replaced and the new value.
func (a *Atom[T]) SwapVals(fn func(T) T) (old, next T, err error) {
	return a.swap(fn, fn, nil)
}

// SwapArgs is Swap for transforms taking extra arguments. args are passed
// to fn unchanged on every attempt and reported to watches in order.
func (a *Atom[T]) SwapArgs(fn func(T, ...any) T, args ...any) (T, error) {
	_, next, err := a.swap(func(current T) T {
		return fn(current, args...)
	}, fn, args)
	return next, err
}

// Swap1 swaps a with a transform taking one typed argument.
func Swap1[T, A any](a *Atom[T], fn func(T, A) T, x A) (T, error) {
	_, next, err := a.swap(func(current T) T {
		return fn(current, x)
	}, fn, []any{x})
	return next, err
}

// Swap2 swaps a with a transform taking two typed arguments.
func Swap2[T, A, B any](a *Atom[T], fn func(T, A, B) T, x A, y B) (T, error) {
	_, next, err := a.swap(func(current T) T {
		return fn(current, x, y)
	}, fn, []any{x, y})
	return next, err
}

func (a *Atom[T]) swap(apply func(T) T, fn any, args []any) (old, next T, err error) {
	for {
		current := a.state.Load()
		candidate := apply(current.value)
		if err := a.validate(candidate, ref.OpSwap); err != nil {
			var zero T
			return zero, zero, err
		}
		if a.state.CompareAndSwap(current, &box[T]{value: candidate}) {
			a.recordCommit(ref.OpSwap)
			return current.value, candidate, a.notify(current.value, candidate, ref.OpSwap, fn, args)
		}
		a.recordRetry()
	}
}
