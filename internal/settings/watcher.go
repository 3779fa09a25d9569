package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher logs changes to the settings file. It exists for operator
// visibility only: every decision re-reads the store, so no reload is
// triggered here.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger}
}

// Start begins watching the settings file's directory. Watching the
// directory instead of the file survives editors that replace the file on
// save.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, watcher)
	return nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// Debounce bursts from editors that write multiple times per save.
	const debounce = 250 * time.Millisecond
	var pendingOp fsnotify.Op

	fire := func() {
		w.logger.Info("settings file changed",
			"path", w.path,
			"op", pendingOp.String())
		pendingOp = 0
	}

	var fireC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pendingOp |= event.Op
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fireC = timer.C
		case <-fireC:
			fireC = nil
			fire()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}
