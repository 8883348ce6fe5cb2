// Package watcher turns filesystem notifications for the content root into
// a debounced stream of change events.
//
// The fsnotify callback style is translated into a plain channel of Event
// so the pipeline consumes changes sequentially, independent of how the
// operating system delivers them. Bursts of notifications for one path
// (editors write files in several syscalls) coalesce into a single event
// carrying the latest observed state; a removal inside the window is never
// coalesced away into silence.
//
// A fatal subscription failure terminates the stream. It is not retried: a
// stale preview with no further updates is worse than a visible crash.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/livemd/internal/errors"
	"github.com/conneroisu/livemd/internal/logging"
)

// EventKind represents the type of file change
type EventKind int

const (
	KindCreated EventKind = iota
	KindModified
	KindRemoved
)

// String returns the string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents one debounced file change. Path is absolute.
type Event struct {
	Path string
	Kind EventKind
}

// Watcher watches the content root recursively and emits debounced events.
type Watcher struct {
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   logging.Logger

	events  chan Event
	flushed chan Event
	errs    chan error

	mu      sync.Mutex
	pending map[string]*pendingEvent

	quit     chan struct{}
	quitOnce sync.Once
}

type pendingEvent struct {
	kind  EventKind
	timer *time.Timer
}

// New creates a watcher for the given content root.
func New(root string, debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:     abs,
		debounce: debounce,
		fsw:      fsw,
		logger:   logger.WithComponent("watcher"),
		events:   make(chan Event, 64),
		flushed:  make(chan Event, 64),
		errs:     make(chan error, 1),
		pending:  make(map[string]*pendingEvent),
		quit:     make(chan struct{}),
	}, nil
}

// Events returns the debounced event stream. The channel is closed when
// the watcher stops, cleanly or fatally.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the fatal error channel. At most one error is ever
// delivered; after that the event stream is closed.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start subscribes to the content root recursively and begins emitting
// events. Restarting after a fatal error requires a fresh Watcher.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addDirs(w.root); err != nil {
		return errors.NewWatchSubscription(err)
	}

	go w.run(ctx)

	return nil
}

// Stop tears the subscription down and stops all pending debounce timers.
func (w *Watcher) Stop() error {
	w.quitOnce.Do(func() { close(w.quit) })

	w.mu.Lock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = make(map[string]*pendingEvent)
	w.mu.Unlock()

	return w.fsw.Close()
}

// addDirs registers a watch on dir and every subdirectory. Used at startup;
// no events are emitted for existing files.
func (w *Watcher) addDirs(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if w.ignored(path) && path != w.root {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

// addTree registers watches under a directory created at runtime and
// synthesizes created events for files already inside it, since they may
// have landed before the watch was in place.
func (w *Watcher) addTree(dir string) {
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		w.enqueue(path, KindCreated)
		return nil
	})
	if err != nil {
		w.logger.Warn(context.Background(), err, "watching new directory", "dir", dir)
	}
}

// run is the main notification loop. It is the only sender on w.events.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			w.quitOnce.Do(func() { close(w.quit) })
			return

		case <-w.quit:
			return

		case e := <-w.flushed:
			select {
			case w.events <- e:
			case <-ctx.Done():
				w.quitOnce.Do(func() { close(w.quit) })
				return
			case <-w.quit:
				return
			}

		case ev, ok := <-w.fsw.Events:
			if !ok {
				select {
				case <-w.quit:
					// Clean shutdown closed the fsnotify watcher.
				default:
					w.fail(fmt.Errorf("notification stream closed unexpectedly"))
				}
				return
			}
			if fatal := w.handle(ev); fatal != nil {
				w.fail(fatal)
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				select {
				case <-w.quit:
				default:
					w.fail(fmt.Errorf("notification error stream closed unexpectedly"))
				}
				return
			}
			w.fail(err)
			return
		}
	}
}

// fail delivers the single fatal error. The deferred close of w.events in
// run terminates the stream right after.
func (w *Watcher) fail(err error) {
	w.logger.Error(context.Background(), err, "watch failed")
	w.errs <- errors.NewWatchSubscription(err)
	w.quitOnce.Do(func() { close(w.quit) })
}

// handle converts one raw fsnotify event. A non-nil return is fatal.
func (w *Watcher) handle(ev fsnotify.Event) error {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return nil
	}

	path := filepath.Clean(ev.Name)
	if w.ignored(path) {
		return nil
	}

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if path == w.root {
			return fmt.Errorf("content root removed: %s", w.root)
		}
		w.enqueue(path, KindRemoved)
		return nil
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addTree(path)
			return nil
		}
		w.enqueue(path, KindCreated)
		return nil
	}

	// Write
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil
	}
	w.enqueue(path, KindModified)

	return nil
}

// enqueue records a change and (re)starts the path's debounce window.
func (w *Watcher) enqueue(path string, kind EventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.kind = coalesce(p.kind, kind)
		p.timer.Reset(w.debounce)
		return
	}

	p := &pendingEvent{kind: kind}
	p.timer = time.AfterFunc(w.debounce, func() { w.flush(path) })
	w.pending[path] = p
}

// coalesce folds a new change into a pending one. The flushed kind always
// reflects the latest observed state: a remove wins over an earlier create
// or write, a re-create after a remove wins back, and writes right after a
// create still flush as created.
func coalesce(old, next EventKind) EventKind {
	switch {
	case next == KindRemoved:
		return KindRemoved
	case old == KindCreated && next == KindModified:
		return KindCreated
	case old == KindRemoved:
		return KindCreated
	default:
		return next
	}
}

// flush moves a debounced event into the run loop's intake.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	e := Event{Path: path, Kind: p.kind}
	w.mu.Unlock()

	select {
	case w.flushed <- e:
	case <-w.quit:
	}
}

// ignored filters editor droppings and hidden files: any dot-prefixed path
// segment below the root, backup suffixes, and swap files.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}

	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}

	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") {
		return true
	}
	switch filepath.Ext(base) {
	case ".swp", ".swx", ".tmp":
		return true
	}

	return false
}
