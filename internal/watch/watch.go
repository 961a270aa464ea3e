// Package watch turns filesystem notifications for one file into debounced
// change callbacks.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loykin/reloadr/internal/debounce"
)

// changeOps are the operations on the watched path that count as a change.
const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod

// Watcher watches a single file. The parent directory is watched so that
// editors replacing the file through a rename keep being observed.
type Watcher struct {
	path   string
	dir    string
	window time.Duration
	notify func(fsnotify.Event)
	logger *slog.Logger
	ready  chan struct{}
}

// New returns a Watcher for path. onChange receives the last event of each
// burst, once the burst has been quiet for window.
func New(path string, window time.Duration, onChange func(fsnotify.Event), logger *slog.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: onChange is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	if window <= 0 {
		window = debounce.DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs = filepath.Clean(abs)
	return &Watcher{
		path:   abs,
		dir:    filepath.Dir(abs),
		window: window,
		notify: onChange,
		logger: logger.With("component", "watch"),
		ready:  make(chan struct{}),
	}, nil
}

// Path returns the cleaned absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Ready is closed once the underlying watch is established.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is done. Errors reported by fsnotify are logged and
// do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	d := debounce.New(w.window, w.notify)
	defer d.Stop()

	w.logger.Info("watching", "path", w.path, "debounce", w.window)
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&changeOps == 0 {
				continue
			}
			w.logger.Debug("change detected", "op", ev.Op.String())
			d.Trigger(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
