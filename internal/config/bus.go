package config

import (
	"context"

	"atomref/internal/event"
)

var bus = event.NewBus[event.ConfigEvent](context.Background(), event.BusOptions{
	Name: "config_events",
})

// Bus carries reload outcomes for every Live settings holder that was not
// given its own bus.
func Bus() *event.Bus[event.ConfigEvent] {
	return bus
}
