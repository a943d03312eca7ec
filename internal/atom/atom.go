// Package atom provides Atom, a reference cell whose value changes only
// through atomic, validated transitions. Every committed transition is
// reported synchronously to the registered watches.
package atom

import (
	"context"
	"sync/atomic"

	"atomref/internal/logging"
	"atomref/internal/metrics"
	"atomref/internal/otel"
	"atomref/internal/ref"
	"atomref/internal/watch"
)

const defaultName = "atom"

// box holds one committed value. Each commit installs a fresh box, so the
// pointer CAS never confuses two commits of an equal value.
type box[T any] struct {
	value T
}

type Atom[T any] struct {
	state       atomic.Pointer[box[T]]
	registry    *watch.Registry[T]
	equal       func(a, b T) bool
	meta        map[string]any
	name        string
	logger      *logging.Logger
	metrics     *metrics.Registry
	instruments *otel.Instruments
}

// Options configures an Atom created with NewWithOptions.
type Options[T any] struct {
	Name        string
	Meta        map[string]any
	Validator   ref.Validator[T]
	Watches     map[any]ref.WatchFunc[T]
	Equal       func(a, b T) bool
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	Instruments *otel.Instruments
}

var _ ref.Ref[int] = (*Atom[int])(nil)

// New creates an atom holding initial, with no validator and no watches.
func New[T any](initial T) *Atom[T] {
	a, _ := NewWithOptions(initial, Options[T]{})
	return a
}

// NewWithOptions creates an atom holding initial. When opts.Validator is
// set, initial must pass it; otherwise the returned error is a
// *ref.InvalidStateError and no atom is created.
func NewWithOptions[T any](initial T, opts Options[T]) (*Atom[T], error) {
	name := opts.Name
	if name == "" {
		name = defaultName
	}
	equal := opts.Equal
	if equal == nil {
		equal = defaultEqual[T]
	}
	registryMetrics := opts.Metrics
	if registryMetrics == nil {
		registryMetrics = metrics.Default
	}

	a := &Atom[T]{
		equal:       equal,
		meta:        ref.CloneMeta(opts.Meta),
		name:        name,
		logger:      opts.Logger.With(map[string]string{"atom": name}),
		metrics:     registryMetrics,
		instruments: opts.Instruments,
	}
	a.state.Store(&box[T]{value: initial})
	a.registry = watch.New(a.Deref)

	if opts.Validator != nil {
		if err := a.registry.SetValidator(opts.Validator); err != nil {
			return nil, err
		}
	}
	for key, fn := range opts.Watches {
		a.registry.AddWatch(key, fn)
	}
	return a, nil
}

// Deref returns the current value. It never blocks.
func (a *Atom[T]) Deref() T {
	return a.state.Load().value
}

func (a *Atom[T]) Name() string {
	return a.name
}

// Meta returns a copy of the metadata supplied at construction.
func (a *Atom[T]) Meta() map[string]any {
	return ref.CloneMeta(a.meta)
}

// SetValidator installs fn after checking that it accepts the current
// value. On rejection the previous validator remains. A nil fn clears it.
func (a *Atom[T]) SetValidator(fn ref.Validator[T]) error {
	return a.registry.SetValidator(fn)
}

func (a *Atom[T]) Validator() ref.Validator[T] {
	return a.registry.Validator()
}

func (a *Atom[T]) AddWatch(key any, fn ref.WatchFunc[T]) ref.Ref[T] {
	a.registry.AddWatch(key, fn)
	return a
}

func (a *Atom[T]) RemoveWatch(key any) ref.Ref[T] {
	a.registry.RemoveWatch(key)
	return a
}

// Watches returns a copy of the registered watches keyed by watch key.
func (a *Atom[T]) Watches() map[any]ref.WatchFunc[T] {
	return a.registry.Watches()
}

// Reset validates newValue and stores it unconditionally, then notifies
// watches with the value it replaced. Reset does not retry and wins over
// any concurrent swap that commits before it.
//
// On rejection the atom is unchanged and the zero value is returned. On a
// *ref.WatchError the value has been committed and newValue is returned.
func (a *Atom[T]) Reset(newValue T) (T, error) {
	_, committed, err := a.reset(newValue)
	if !committed {
		var zero T
		return zero, err
	}
	return newValue, err
}

// ResetVals is Reset returning the value that was replaced.
func (a *Atom[T]) ResetVals(newValue T) (T, error) {
	old, _, err := a.reset(newValue)
	return old, err
}

func (a *Atom[T]) reset(newValue T) (old T, committed bool, err error) {
	if err := a.validate(newValue, ref.OpReset); err != nil {
		return old, false, err
	}
	previous := a.state.Swap(&box[T]{value: newValue})
	a.recordCommit(ref.OpReset)
	return previous.value, true, a.notify(previous.value, newValue, ref.OpReset, nil, nil)
}

// CompareAndSet replaces the value with newValue only if the current value
// equals expectedOld. It reports whether the replacement happened; watches
// are notified only when it did. A rejected newValue returns false with a
// *ref.InvalidStateError before any comparison is made.
func (a *Atom[T]) CompareAndSet(expectedOld, newValue T) (bool, error) {
	if err := a.validate(newValue, ref.OpSet); err != nil {
		return false, err
	}
	next := &box[T]{value: newValue}
	for {
		current := a.state.Load()
		if !a.equal(current.value, expectedOld) {
			return false, nil
		}
		if a.state.CompareAndSwap(current, next) {
			a.recordCommit(ref.OpSet)
			return true, a.notify(expectedOld, newValue, ref.OpSet, nil, nil)
		}
		// The box changed under us; the new box may still hold an equal value.
	}
}

func (a *Atom[T]) validate(candidate T, op ref.Op) error {
	err := a.registry.Validate(candidate)
	if err == nil {
		return nil
	}
	a.metrics.RecordRejection(a.name)
	a.instruments.RecordRejection(context.Background(), a.name)
	a.logger.Debug("candidate rejected", map[string]string{
		"op":    op.String(),
		"error": err.Error(),
	})
	return err
}

func (a *Atom[T]) recordCommit(op ref.Op) {
	a.metrics.RecordCommit(a.name, op.String())
	a.instruments.RecordCommit(context.Background(), a.name, op.String())
}

func (a *Atom[T]) recordRetry() {
	a.metrics.RecordRetry(a.name)
	a.instruments.RecordRetry(context.Background(), a.name)
}

func (a *Atom[T]) notify(old, next T, op ref.Op, fn any, args []any) error {
	err := a.registry.Notify(ref.Transition[T]{
		Ref:  a,
		Old:  old,
		New:  next,
		Op:   op,
		Fn:   fn,
		Args: args,
	})
	if err == nil {
		return nil
	}
	a.metrics.RecordWatchFailure(a.name)
	a.instruments.RecordWatchFailure(context.Background(), a.name)
	a.logger.Warn("watch failed", map[string]string{
		"op":    op.String(),
		"error": err.Error(),
	})
	return err
}
