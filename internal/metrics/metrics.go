package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	refs        sync.Map
	events      sync.Map
	subscribers sync.Map
}

type refStats struct {
	swaps         atomic.Int64
	sets          atomic.Int64
	resets        atomic.Int64
	retries       atomic.Int64
	rejections    atomic.Int64
	watchFailures atomic.Int64
}

type eventStats struct {
	published atomic.Int64
	dropped   atomic.Int64
}

type subscriberStats struct {
	filtered   atomic.Int64
	unfiltered atomic.Int64
}

type eventKey struct {
	bus       string
	eventType string
}

// RefSnapshot is a point-in-time copy of one reference's counters.
type RefSnapshot struct {
	Swaps         int64
	Sets          int64
	Resets        int64
	Retries       int64
	Rejections    int64
	WatchFailures int64
}

// Commits is the total number of committed transitions.
func (s RefSnapshot) Commits() int64 {
	return s.Swaps + s.Sets + s.Resets
}

var Default = &Registry{}

func (r *Registry) RecordCommit(name, op string) {
	if r == nil {
		return
	}
	stats := r.refStats(name)
	switch op {
	case "swap":
		stats.swaps.Add(1)
	case "set":
		stats.sets.Add(1)
	case "reset":
		stats.resets.Add(1)
	}
}

func (r *Registry) RecordRetry(name string) {
	if r == nil {
		return
	}
	r.refStats(name).retries.Add(1)
}

func (r *Registry) RecordRejection(name string) {
	if r == nil {
		return
	}
	r.refStats(name).rejections.Add(1)
}

func (r *Registry) RecordWatchFailure(name string) {
	if r == nil {
		return
	}
	r.refStats(name).watchFailures.Add(1)
}

func (r *Registry) IncEventPublished(bus, eventType string) {
	if r == nil {
		return
	}
	r.eventStats(bus, eventType).published.Add(1)
}

func (r *Registry) IncEventDropped(bus, eventType string) {
	if r == nil {
		return
	}
	r.eventStats(bus, eventType).dropped.Add(1)
}

func (r *Registry) SetEventSubscriberCounts(bus string, filtered, unfiltered int) {
	if r == nil {
		return
	}
	value, _ := r.subscribers.LoadOrStore(normalizeName(bus), &subscriberStats{})
	stats := value.(*subscriberStats)
	stats.filtered.Store(int64(filtered))
	stats.unfiltered.Store(int64(unfiltered))
}

// Snapshot returns the counters recorded for the named reference.
func (r *Registry) Snapshot(name string) RefSnapshot {
	if r == nil {
		return RefSnapshot{}
	}
	value, ok := r.refs.Load(normalizeName(name))
	if !ok {
		return RefSnapshot{}
	}
	stats := value.(*refStats)
	return RefSnapshot{
		Swaps:         stats.swaps.Load(),
		Sets:          stats.sets.Load(),
		Resets:        stats.resets.Load(),
		Retries:       stats.retries.Load(),
		Rejections:    stats.rejections.Load(),
		WatchFailures: stats.watchFailures.Load(),
	}
}

// RefNames lists every reference with recorded activity, sorted.
func (r *Registry) RefNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	r.refs.Range(func(key, value interface{}) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

func (r *Registry) subscriberBuses() []string {
	var buses []string
	r.subscribers.Range(func(key, value interface{}) bool {
		if bus, ok := key.(string); ok {
			buses = append(buses, bus)
		}
		return true
	})
	sort.Strings(buses)
	return buses
}

func (r *Registry) refStats(name string) *refStats {
	value, _ := r.refs.LoadOrStore(normalizeName(name), &refStats{})
	return value.(*refStats)
}

func (r *Registry) eventStats(bus, eventType string) *eventStats {
	key := eventKey{bus: normalizeName(bus), eventType: normalizeName(eventType)}
	value, _ := r.events.LoadOrStore(key, &eventStats{})
	return value.(*eventStats)
}

func (r *Registry) eventKeys() []eventKey {
	var keys []eventKey
	r.events.Range(func(key, value interface{}) bool {
		if typed, ok := key.(eventKey); ok {
			keys = append(keys, typed)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bus != keys[j].bus {
			return keys[i].bus < keys[j].bus
		}
		return keys[i].eventType < keys[j].eventType
	})
	return keys
}

func normalizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "unknown"
	}
	return name
}
