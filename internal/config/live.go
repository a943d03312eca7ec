package config

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"atomref/internal/atom"
	"atomref/internal/event"
	"atomref/internal/logging"
	"atomref/internal/metrics"
	"atomref/internal/ref"
	"atomref/internal/watcher"
)

const liveAtomName = "settings"

// LiveOptions configures a Live settings holder.
type LiveOptions struct {
	Overrides map[string]any
	Logger    *logging.Logger
	Metrics   *metrics.Registry
	Bus       event.Sink[event.ConfigEvent]
	Debounce  time.Duration
}

// Live keeps the current Settings in an atom whose validator is Validate.
// A reload that produces invalid settings is rejected by the atom and the
// previous settings stay in effect.
type Live struct {
	path     string
	defaults []byte
	options  LiveOptions
	logger   *logging.Logger
	settings *atom.Atom[Settings]

	mu      sync.Mutex
	watcher *watcher.Watcher
	handle  watcher.Handle
}

// NewLive loads settings from path and fails if they do not validate.
func NewLive(path string, defaultsPayload []byte, options LiveOptions) (*Live, error) {
	initial, err := LoadSettings(path, defaultsPayload, options.Overrides)
	if err != nil {
		return nil, err
	}
	if options.Bus == nil {
		options.Bus = Bus()
	}
	logger := options.Logger.With(map[string]string{"config": path})
	settings, err := atom.NewWithOptions(initial, atom.Options[Settings]{
		Name:      liveAtomName,
		Meta:      map[string]any{"path": path},
		Validator: settingsValidator,
		Logger:    options.Logger,
		Metrics:   options.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Live{
		path:     path,
		defaults: defaultsPayload,
		options:  options,
		logger:   logger,
		settings: settings,
	}, nil
}

func settingsValidator(settings Settings) (bool, error) {
	if err := Validate(settings); err != nil {
		return false, err
	}
	return true, nil
}

// Settings returns the settings currently in effect.
func (l *Live) Settings() Settings {
	return l.settings.Deref()
}

// Ref exposes the underlying reference so callers can watch for changes.
func (l *Live) Ref() ref.Ref[Settings] {
	return l.settings
}

// Reload re-reads the file and installs the result. Watch errors from the
// settings reference are returned, but the new settings remain installed.
func (l *Live) Reload() error {
	next, err := LoadSettings(l.path, l.defaults, l.options.Overrides)
	if err != nil {
		l.reject(err)
		return err
	}
	if _, err := l.settings.Reset(next); err != nil {
		if ref.IsRejected(err) {
			l.reject(err)
			return err
		}
		l.logger.Warn("settings watch failed", map[string]string{"error": err.Error()})
		return err
	}
	l.logger.Info("settings reloaded", nil)
	l.options.Bus.Publish(event.NewConfigEvent(event.TypeConfigReloaded, l.path, "settings reloaded"))
	return nil
}

func (l *Live) reject(err error) {
	l.logger.Warn("settings rejected", map[string]string{"error": err.Error()})
	l.options.Bus.Publish(event.NewConfigEvent(event.TypeConfigRejected, l.path, err.Error()))
}

// Watch starts reloading whenever the settings file changes. It is a
// no-op when Live has no file path.
func (l *Live) Watch() error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher != nil {
		return nil
	}
	fileWatcher, err := watcher.NewWithOptions(watcher.Options{
		Logger:   l.options.Logger,
		Debounce: l.options.Debounce,
	})
	if err != nil {
		return err
	}
	handle, err := fileWatcher.WatchFile(l.path, func(change watcher.Event) {
		l.logger.Debug("settings file changed", map[string]string{
			"op":        change.Op.String(),
			"coalesced": strconv.Itoa(change.Coalesced),
		})
		_ = l.Reload()
	})
	if err != nil {
		_ = fileWatcher.Close()
		return err
	}
	l.watcher = fileWatcher
	l.handle = handle
	return nil
}

// Close stops watching the settings file.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := errors.Join(l.handle.Close(), l.watcher.Close())
	l.watcher = nil
	l.handle = nil
	return err
}
