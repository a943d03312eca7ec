package event

import (
	"time"

	"atomref/internal/ref"
)

// Event represents a typed event with an occurrence timestamp.
type Event interface {
	Type() string
	Timestamp() time.Time
}

const (
	TypeRefSwap        = "ref_swap"
	TypeRefSet         = "ref_set"
	TypeRefReset       = "ref_reset"
	TypeConfigReloaded = "config_reloaded"
	TypeConfigRejected = "config_rejected"
)

// TransitionEvent is a committed reference transition with the value type
// erased, so transitions from references of different types can share a bus.
type TransitionEvent struct {
	EventType  string
	RefName    string
	WatchKey   any
	Op         ref.Op
	Old        any
	New        any
	Args       []any
	OccurredAt time.Time
}

func NewTransitionEvent[T any](refName string, transition ref.Transition[T]) TransitionEvent {
	return TransitionEvent{
		EventType:  "ref_" + transition.Op.String(),
		RefName:    refName,
		WatchKey:   transition.Key,
		Op:         transition.Op,
		Old:        transition.Old,
		New:        transition.New,
		Args:       transition.Args,
		OccurredAt: time.Now().UTC(),
	}
}

func (e TransitionEvent) Type() string {
	return e.EventType
}

func (e TransitionEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// ConfigEvent reports the outcome of a settings reload.
type ConfigEvent struct {
	EventType  string
	Path       string
	Message    string
	OccurredAt time.Time
}

func NewConfigEvent(eventType, path, message string) ConfigEvent {
	return ConfigEvent{
		EventType:  eventType,
		Path:       path,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

func (e ConfigEvent) Type() string {
	return e.EventType
}

func (e ConfigEvent) Timestamp() time.Time {
	return e.OccurredAt
}
