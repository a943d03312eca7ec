package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"atomref/internal/logging"
)

// Event is one debounced change to a watched file. Op is the union of
// every fsnotify operation seen during the quiet period and Coalesced
// counts the raw notifications folded into it.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
	Coalesced int
}

// Handle releases watcher resources for a registration.
type Handle interface {
	Close() error
}

// Options controls watcher behavior.
type Options struct {
	Logger   *logging.Logger
	Debounce time.Duration
}

// Metrics is a snapshot of watcher activity.
type Metrics struct {
	ActiveWatches   int
	EventsDelivered uint64
	EventsDropped   uint64
	Errors          uint64
}

// Watcher is the fsnotify-backed implementation.
type Watcher struct {
	watcher         *fsnotify.Watcher
	mutex           sync.Mutex
	callbacks       map[string][]callbackEntry
	directories     map[string]int
	debouncer       *debouncer
	events          chan fsnotify.Event
	errors          chan error
	done            chan struct{}
	closed          bool
	logger          *logging.Logger
	nextID          uint64
	eventsDelivered uint64
	eventsDropped   uint64
	errorCount      uint64
}
