package event

import (
	"context"
	"testing"
	"time"

	"atomref/internal/ref"
)

func TestMockBusRecordsAndFansOut(t *testing.T) {
	bus := NewMockBus[int]()
	defer bus.Close()

	events, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	if got := ReceiveWithTimeout(t, events, 100*time.Millisecond); got != 1 {
		t.Fatalf("expected event 1, got %d", got)
	}
	if got := ReceiveWithTimeout(t, events, 100*time.Millisecond); got != 2 {
		t.Fatalf("expected event 2, got %d", got)
	}
	if recorded := bus.Events(); len(recorded) != 2 {
		t.Fatalf("expected 2 stored events, got %d", len(recorded))
	}
}

func TestMockBusCancelStopsDelivery(t *testing.T) {
	bus := NewMockBus[int]()
	events, cancel := bus.Subscribe()
	cancel()
	cancel()

	bus.Publish(1)
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestMockBusEventsOfType(t *testing.T) {
	bus := NewMockBus[ConfigEvent]()
	bus.Publish(NewConfigEvent(TypeConfigReloaded, "a.toml", "ok"))
	bus.Publish(NewConfigEvent(TypeConfigRejected, "a.toml", "bad"))
	bus.Publish(NewConfigEvent(TypeConfigRejected, "a.toml", "worse"))

	rejected := bus.EventsOfType(TypeConfigRejected)
	if len(rejected) != 2 || rejected[1].Message != "worse" {
		t.Fatalf("unexpected rejected events %+v", rejected)
	}
}

func TestExpectNoEventOnQuietBus(t *testing.T) {
	bus := NewBus[string](context.Background(), BusOptions{})
	defer bus.Close()

	events, cancel := bus.Subscribe()
	defer cancel()
	ExpectNoEvent(t, events, 20*time.Millisecond)

	bus.Publish("ok")
	if received := ReceiveWithTimeout(t, events, 100*time.Millisecond); received != "ok" {
		t.Fatalf("expected ok, got %q", received)
	}
}

func TestEventMatcherChainsChecks(t *testing.T) {
	event := NewTransitionEvent("counter", ref.Transition[int]{Old: 1, New: 2, Op: ref.OpSwap})
	MatchEvent(t, event).
		Require("expected swap", func(e TransitionEvent) bool { return e.Type() == TypeRefSwap }).
		Require("expected counter", func(e TransitionEvent) bool { return e.RefName == "counter" })
}
