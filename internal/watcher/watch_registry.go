package watcher

import (
	"errors"
	"path/filepath"
	"sync"
)

var ErrClosed = errors.New("watcher is closed")

type callbackEntry struct {
	id       uint64
	callback func(Event)
}

type watchHandle struct {
	watcher *Watcher
	path    string
	id      uint64
	once    sync.Once
}

func (handle *watchHandle) Close() error {
	if handle == nil || handle.watcher == nil {
		return nil
	}
	var err error
	handle.once.Do(func() {
		err = handle.watcher.removeCallback(handle.path, handle.id)
	})
	return err
}

// WatchFile registers callback for changes to the file at path. The file
// does not need to exist yet; its directory does.
func (watcher *Watcher) WatchFile(path string, callback func(Event)) (Handle, error) {
	if watcher == nil {
		return nil, errors.New("watcher is nil")
	}
	if path == "" {
		return nil, errors.New("path is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	directory := filepath.Dir(absolute)

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil, ErrClosed
	}
	needsAdd := watcher.directories[directory] == 0
	watcher.nextID++
	entry := callbackEntry{id: watcher.nextID, callback: callback}
	watcher.callbacks[absolute] = append(watcher.callbacks[absolute], entry)
	watcher.directories[directory]++
	activeCount := len(watcher.callbacks)
	watcher.mutex.Unlock()

	if needsAdd {
		if err := watcher.watcher.Add(directory); err != nil {
			_ = watcher.removeCallback(absolute, entry.id)
			watcher.logger.Warn("watch add failed", map[string]string{
				"path":  directory,
				"error": err.Error(),
			})
			return nil, err
		}
	}
	watcher.logDebug("watch added", absolute, activeCount)
	return &watchHandle{watcher: watcher, path: absolute, id: entry.id}, nil
}

func (watcher *Watcher) removeCallback(path string, id uint64) error {
	directory := filepath.Dir(path)
	shouldRemove := false

	watcher.mutex.Lock()
	callbacks := watcher.callbacks[path]
	found := false
	for index, candidate := range callbacks {
		if candidate.id == id {
			callbacks = append(callbacks[:index:index], callbacks[index+1:]...)
			found = true
			break
		}
	}
	if found {
		if len(callbacks) == 0 {
			delete(watcher.callbacks, path)
		} else {
			watcher.callbacks[path] = callbacks
		}
		watcher.directories[directory]--
		if watcher.directories[directory] <= 0 {
			delete(watcher.directories, directory)
			shouldRemove = !watcher.closed
		}
	}
	activeCount := len(watcher.callbacks)
	watcher.mutex.Unlock()

	if !shouldRemove {
		return nil
	}
	if err := watcher.watcher.Remove(directory); err != nil {
		watcher.logger.Warn("watch remove failed", map[string]string{
			"path":  directory,
			"error": err.Error(),
		})
		return err
	}
	watcher.logDebug("watch removed", path, activeCount)
	return nil
}

func (watcher *Watcher) callbacksForPathLocked(path string) []func(Event) {
	entries := watcher.callbacks[path]
	callbacks := make([]func(Event), 0, len(entries))
	for _, entry := range entries {
		callbacks = append(callbacks, entry.callback)
	}
	return callbacks
}
