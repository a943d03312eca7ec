package ref

// Op names the kind of committed transition delivered to watches.
type Op string

const (
	OpSwap  Op = "swap"
	OpSet   Op = "set"
	OpReset Op = "reset"
)

func (op Op) String() string {
	return string(op)
}

// Ref is the protocol shared by every reference kind: validated mutation
// plus watch registration. Implementations are *atom.Atom and
// *volatile.Volatile.
type Ref[T any] interface {
	Deref() T
	SetValidator(fn Validator[T]) error
	Validator() Validator[T]
	AddWatch(key any, fn WatchFunc[T]) Ref[T]
	RemoveWatch(key any) Ref[T]
	Meta() map[string]any
}

// Transition describes one committed change of a reference.
// Fn and Args are only set for swaps; Args keeps the extra arguments in
// call order.
type Transition[T any] struct {
	Key  any
	Ref  Ref[T]
	Old  T
	New  T
	Op   Op
	Fn   any
	Args []any
}

// WatchFunc is invoked synchronously after every committed transition.
// A returned error is propagated to the caller of the mutation.
type WatchFunc[T any] func(Transition[T]) error

// Validator approves or rejects a candidate value. Returning false rejects
// by policy; returning an error (or panicking) rejects with a cause.
type Validator[T any] func(T) (bool, error)

// Predicate adapts a plain boolean check into a Validator.
func Predicate[T any](fn func(T) bool) Validator[T] {
	if fn == nil {
		return nil
	}
	return func(value T) (bool, error) {
		return fn(value), nil
	}
}

// CloneMeta copies a metadata map so the caller's map can't alias the
// reference's.
func CloneMeta(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(meta))
	for key, value := range meta {
		cloned[key] = value
	}
	return cloned
}
