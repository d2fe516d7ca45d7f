// Package watcher reloads configuration when the config file changes on
// disk. Events are debounced so an editor's write-rename-chmod sequence
// triggers one reload.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	kberrors "github.com/conneroisu/kbdebug/internal/errors"
	"github.com/conneroisu/kbdebug/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// ChangeEvent represents a file change event.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

func eventTypeOf(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

// ReloadFunc is invoked once per debounced batch of changes.
type ReloadFunc func(ctx context.Context, events []ChangeEvent) error

// ConfigWatcher watches a single config file.
//
// The parent directory is watched rather than the file itself, since most
// editors replace the file on save and a watch on the old inode would go
// quiet.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	reload  ReloadFunc
	logger  logging.Logger

	debouncer *Debouncer
	stopOnce  sync.Once
	done      chan struct{}
}

// NewConfigWatcher creates a watcher for path. It does not start watching
// until Start is called.
func NewConfigWatcher(path string, delay time.Duration, reload ReloadFunc, logger logging.Logger) (*ConfigWatcher, error) {
	if reload == nil {
		return nil, kberrors.NewValidationError("ERR_WATCH_RELOAD", "reload function cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, kberrors.NewIOError("ERR_WATCH_PATH", "resolving config path", err).WithContext("path", path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, kberrors.NewIOError("ERR_WATCH_INIT", "creating fsnotify watcher", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, kberrors.NewIOError("ERR_WATCH_ADD", "watching config directory", err).
			WithContext("path", filepath.Dir(abs))
	}

	return &ConfigWatcher{
		path:      abs,
		watcher:   fw,
		reload:    reload,
		logger:    logger.WithComponent("watcher"),
		debouncer: NewDebouncer(delay),
		done:      make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (cw *ConfigWatcher) Path() string {
	return cw.path
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (cw *ConfigWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()
		select {
		case <-cw.done:
		case <-ctx.Done():
		}
	}()

	go cw.processBatches(ctx)
	go cw.watchLoop(ctx)
}

// Stop closes the underlying watcher.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.debouncer.Stop()
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			cw.debouncer.Add(ChangeEvent{Type: eventTypeOf(event.Op), Path: event.Name})
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn(ctx, err, "Config watcher error")
		}
	}
}

func (cw *ConfigWatcher) processBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-cw.debouncer.Output():
			if err := cw.reload(ctx, events); err != nil {
				// Keep the previous config; the next save retries.
				cw.logger.Error(ctx, err, "Config reload failed", "path", cw.path)
				continue
			}
			cw.logger.Info(ctx, "Config reloaded", "path", cw.path, "events", len(events))
		}
	}
}

// Debouncer groups rapid changes into one batch, keeping the latest event
// per path.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer that flushes delay after the last event.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// Add records an event and restarts the flush timer.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// Output delivers debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Stop cancels a pending flush.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Deduplicate by path keeping arrival order of first sighting.
	index := make(map[string]int, len(d.pending))
	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		if i, ok := index[event.Path]; ok {
			events[i] = event
			continue
		}
		index[event.Path] = len(events)
		events = append(events, event)
	}

	select {
	case d.output <- events:
	default:
		// Consumer is behind; a later batch will carry the change.
	}

	d.pending = d.pending[:0]
}
