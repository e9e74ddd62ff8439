// Package watch reloads files when they change on disk.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/stylesync/pkg/util"
)

// DefaultDebounce groups the bursts of events editors emit per save.
const DefaultDebounce = 200 * time.Millisecond

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher calls onChange for a watched file once its events settle. The
// parent directories are watched so atomic saves (write temp, rename over)
// are seen.
//
//	w, err := watch.New([]string{"design.json"}, reload, watch.Options{})
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(); err != nil {
//	    return err
//	}
//	defer w.Stop()
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	onChange func(path string)
	debounce time.Duration
	logger   *slog.Logger

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	fired          int

	stopChan chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// New creates a Watcher for paths. Nothing is watched until Start.
func New(paths []string, onChange func(path string), opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	if onChange == nil {
		return nil, errors.New("watch: onChange is required")
	}
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:        fw,
		files:          files,
		onChange:       onChange,
		debounce:       opts.Debounce,
		logger:         util.OrDefault(opts.Logger),
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start watches the parent directory of every path and begins delivering
// changes. It may be called once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New("watcher already stopped")
	}
	if w.started {
		return errors.New("watcher already started")
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.started = true
	go w.eventLoop()

	w.logger.Info("file watcher started", "files", len(w.files))
	return nil
}

// Stop cancels pending callbacks and closes the watcher. It is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.logger.Info("file watcher stopped")
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}
	w.logger.Debug("file event", "op", event.Op.String(), "file", path)

	// A removed or renamed-away file stays watched through its directory;
	// the create that follows an atomic save triggers the reload.
	if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
		w.schedule(path)
	}
}

func (w *Watcher) schedule(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.fired++
		w.debounceMu.Unlock()

		select {
		case <-w.stopChan:
			return
		default:
		}
		w.onChange(path)
	})
}

// Stats describes watcher activity.
type Stats struct {
	Pending int
	Fired   int
	Running bool
}

// Stats returns current counters.
func (w *Watcher) Stats() Stats {
	w.debounceMu.Lock()
	pending, fired := len(w.debounceTimers), w.fired
	w.debounceMu.Unlock()

	w.mu.Lock()
	running := w.started && !w.stopped
	w.mu.Unlock()
	return Stats{Pending: pending, Fired: fired, Running: running}
}
