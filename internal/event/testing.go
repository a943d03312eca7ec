package event

import (
	"sync"
	"testing"
	"time"
)

const mockBusBufferSize = 16

// MockBus records every published event and fans it out synchronously.
// It implements Sink, so tests can hand it to Publisher or config.Live.
type MockBus[T any] struct {
	mu          sync.Mutex
	events      []T
	subscribers map[int]chan T
	nextID      int
}

func NewMockBus[T any]() *MockBus[T] {
	return &MockBus[T]{subscribers: make(map[int]chan T)}
}

func (bus *MockBus[T]) Publish(event T) {
	if bus == nil {
		return
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.events = append(bus.events, event)
	for _, ch := range bus.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe receives events published after the call. Events that do not
// fit in the channel buffer are dropped.
func (bus *MockBus[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, mockBusBufferSize)
	bus.mu.Lock()
	bus.nextID++
	id := bus.nextID
	bus.subscribers[id] = ch
	bus.mu.Unlock()

	return ch, func() {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		if existing, ok := bus.subscribers[id]; ok {
			delete(bus.subscribers, id)
			close(existing)
		}
	}
}

func (bus *MockBus[T]) Close() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for id, ch := range bus.subscribers {
		delete(bus.subscribers, id)
		close(ch)
	}
}

// Events returns everything published so far, in order.
func (bus *MockBus[T]) Events() []T {
	if bus == nil {
		return nil
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return append([]T(nil), bus.events...)
}

// EventsOfType filters Events by Type() for event types that have one.
func (bus *MockBus[T]) EventsOfType(eventType string) []T {
	var matched []T
	for _, event := range bus.Events() {
		if typed, ok := any(event).(typedEvent); ok && typed.Type() == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// ReceiveWithTimeout waits for a single event or fails the test.
func ReceiveWithTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-timer.C:
		t.Fatalf("timed out waiting for event after %s", timeout)
	}
	var zero T
	return zero
}

// ExpectNoEvent fails the test if anything arrives on ch within wait.
func ExpectNoEvent[T any](t *testing.T, ch <-chan T, wait time.Duration) {
	t.Helper()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case event, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-timer.C:
	}
}

// EventMatcher chains assertions over one event.
type EventMatcher[T any] struct {
	t     *testing.T
	event T
}

func MatchEvent[T any](t *testing.T, event T) *EventMatcher[T] {
	return &EventMatcher[T]{t: t, event: event}
}

func (m *EventMatcher[T]) Require(message string, check func(T) bool) *EventMatcher[T] {
	m.t.Helper()
	if !check(m.event) {
		m.t.Fatalf("%s: got %+v", message, m.event)
	}
	return m
}
