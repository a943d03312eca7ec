package event

import "atomref/internal/ref"

// Sink accepts published events. *Bus and *MockBus satisfy it.
type Sink[E any] interface {
	Publish(E)
}

// Publisher returns a watch that publishes every transition it sees onto
// sink as a TransitionEvent. The watch never fails, and it runs
// synchronously, so the event is on the bus before the mutating call
// returns.
func Publisher[T any](sink Sink[TransitionEvent], refName string) ref.WatchFunc[T] {
	return func(transition ref.Transition[T]) error {
		if sink == nil {
			return nil
		}
		sink.Publish(NewTransitionEvent(refName, transition))
		return nil
	}
}
