// Package watcher delivers debounced filesystem events for individual files.
//
// Files are watched through their parent directory so that editors which
// replace a file by rename still produce events. Delivery is best effort:
// bursts for the same path are coalesced into the last event.
package watcher
