package watch

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"atomref/internal/ref"
)

// Registry owns a reference's validator slot and watch table.
//
// The table is immutable once published: AddWatch and RemoveWatch build a
// new table under mu and swap it in, so Notify can iterate a snapshot
// without holding the lock while callbacks run.
type Registry[T any] struct {
	mu        sync.Mutex
	validator atomic.Pointer[ref.Validator[T]]
	table     atomic.Pointer[table[T]]
	current   func() T
}

type table[T any] struct {
	entries []entry[T]
}

type entry[T any] struct {
	key any
	fn  ref.WatchFunc[T]
}

// New creates a registry. current returns the live value of the owning
// reference and is used to vet validators at installation time.
func New[T any](current func() T) *Registry[T] {
	registry := &Registry[T]{current: current}
	registry.table.Store(&table[T]{})
	return registry
}

// SetValidator installs fn after checking it accepts the current value.
// On rejection the previous validator stays active. A nil fn clears the slot.
func (r *Registry[T]) SetValidator(fn ref.Validator[T]) error {
	if fn == nil {
		r.validator.Store(nil)
		return nil
	}
	if r.current != nil {
		if err := ref.Validate(fn, r.current()); err != nil {
			return err
		}
	}
	r.validator.Store(&fn)
	return nil
}

func (r *Registry[T]) Validator() ref.Validator[T] {
	fn := r.validator.Load()
	if fn == nil {
		return nil
	}
	return *fn
}

// Validate checks value against the currently installed validator.
func (r *Registry[T]) Validate(value T) error {
	return ref.Validate(r.Validator(), value)
}

// AddWatch registers fn under key, replacing any previous callback for the
// same key. Keys must be comparable; an uncomparable key panics the same
// way a map insert would. A nil fn removes the key.
func (r *Registry[T]) AddWatch(key any, fn ref.WatchFunc[T]) {
	if fn == nil {
		r.RemoveWatch(key)
		return
	}
	_ = sameKey(key, key)
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.table.Load()
	entries := make([]entry[T], 0, len(current.entries)+1)
	replaced := false
	for _, existing := range current.entries {
		if !replaced && sameKey(key, existing.key) {
			existing.fn = fn
			replaced = true
		}
		entries = append(entries, existing)
	}
	if !replaced {
		entries = append(entries, entry[T]{key: key, fn: fn})
		sortEntries(entries)
	}
	r.table.Store(&table[T]{entries: entries})
}

// RemoveWatch drops the callback under key. Missing keys are ignored.
func (r *Registry[T]) RemoveWatch(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.table.Load()
	entries := make([]entry[T], 0, len(current.entries))
	for _, existing := range current.entries {
		if sameKey(key, existing.key) {
			continue
		}
		entries = append(entries, existing)
	}
	if len(entries) == len(current.entries) {
		return
	}
	r.table.Store(&table[T]{entries: entries})
}

// Watches returns a copy of the registered callbacks.
func (r *Registry[T]) Watches() map[any]ref.WatchFunc[T] {
	current := r.table.Load()
	copied := make(map[any]ref.WatchFunc[T], len(current.entries))
	for _, existing := range current.entries {
		copied[existing.key] = existing.fn
	}
	return copied
}

func (r *Registry[T]) Len() int {
	return len(r.table.Load().entries)
}

// Notify delivers transition to every watch in the current snapshot, in
// the snapshot's key order. Delivery stops at the first failing watch and
// its error is returned as a *ref.WatchError.
func (r *Registry[T]) Notify(transition ref.Transition[T]) error {
	snapshot := r.table.Load()
	for _, existing := range snapshot.entries {
		delivered := transition
		delivered.Key = existing.key
		if err := existing.fn(delivered); err != nil {
			return &ref.WatchError{Key: existing.key, Err: err}
		}
	}
	return nil
}

func sortEntries[T any](entries []entry[T]) {
	sort.SliceStable(entries, func(i, j int) bool {
		return keyLabel(entries[i].key) < keyLabel(entries[j].key)
	})
}

// sameKey matches keys with ==. Keys that never equal themselves, such as
// NaN, match when their printed form is identical.
func sameKey(a, b any) bool {
	if a != a {
		return b != b && keyLabel(a) == keyLabel(b)
	}
	return a == b
}

func keyLabel(key any) string {
	return fmt.Sprintf("%T:%v", key, key)
}
