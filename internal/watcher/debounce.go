package watcher

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer holds one pending event per path until the path has been quiet
// for duration. It is guarded by the owning Watcher's mutex.
type debouncer struct {
	duration time.Duration
	pending  map[string]*pendingEvent
}

type pendingEvent struct {
	timer *time.Timer
	event Event
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		pending:  make(map[string]*pendingEvent),
	}
}

// add folds event into the pending event for its path and restarts the
// quiet period. It reports whether an event was already pending.
func (d *debouncer) add(event Event, flush func(string)) bool {
	if d == nil || d.pending == nil {
		return false
	}
	path := event.Path
	pending, ok := d.pending[path]
	if !ok {
		event.Coalesced = 1
		d.pending[path] = &pendingEvent{
			event: event,
			timer: time.AfterFunc(d.duration, func() { flush(path) }),
		}
		return false
	}
	pending.event.Op |= event.Op
	pending.event.Timestamp = event.Timestamp
	pending.event.Coalesced++
	pending.timer.Reset(d.duration)
	return true
}

func (d *debouncer) take(path string) (Event, bool) {
	if d == nil || d.pending == nil {
		return Event{}, false
	}
	pending, ok := d.pending[path]
	if !ok {
		return Event{}, false
	}
	delete(d.pending, path)
	return pending.event, true
}

func (d *debouncer) stop() {
	if d == nil {
		return
	}
	for _, pending := range d.pending {
		pending.timer.Stop()
	}
	d.pending = nil
}

func (watcher *Watcher) handleEvent(raw fsnotify.Event) {
	path, err := filepath.Abs(raw.Name)
	if err != nil {
		path = raw.Name
	}

	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed || len(watcher.callbacks[path]) == 0 {
		return
	}
	event := Event{Path: path, Op: raw.Op, Timestamp: time.Now().UTC()}
	if watcher.debouncer.add(event, watcher.flush) {
		atomic.AddUint64(&watcher.eventsDropped, 1)
	}
}

func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	event, ok := watcher.debouncer.take(path)
	if !ok {
		watcher.mutex.Unlock()
		return
	}
	callbacks := watcher.callbacksForPathLocked(path)
	watcher.mutex.Unlock()

	for _, callback := range callbacks {
		callback(event)
		atomic.AddUint64(&watcher.eventsDelivered, 1)
	}
}
