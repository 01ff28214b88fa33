package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/adityaviki/sentinelops/internal/logging"
)

// reloadDebounce coalesces the burst of fsnotify events an editor save
// sequence produces into a single reload.
const reloadDebounce = 500 * time.Millisecond

// ReloadCallback is invoked with the freshly loaded, validated config after
// a file change settles. Callers apply only the hot-reloadable subset
// (detection thresholds, dedup cooldown, paging severities) to their live
// components; every other field requires a process restart to take effect.
type ReloadCallback func(cfg *Config) error

// Watcher watches the YAML config file for changes and triggers
// ReloadCallback with debouncing, in the shape of the corpus's
// integration-config file watcher. An invalid reload is logged and the
// previous config keeps running; the watcher never crashes the process.
type Watcher struct {
	path     string
	callback ReloadCallback
	logger   *logging.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
	cancel        context.CancelFunc
	stopped       chan struct{}
	ready         chan struct{}
}

// NewWatcher creates a Watcher for the config file at path. path must not
// be empty — a process started with built-in defaults has nothing to watch.
func NewWatcher(path string, callback ReloadCallback) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher: path must not be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("config watcher: callback must not be nil")
	}
	return &Watcher{
		path:     path,
		callback: callback,
		logger:   logging.GetLogger("config.watcher"),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Name implements lifecycle.Component.
func (w *Watcher) Name() string { return "config.watcher" }

// Start implements lifecycle.Component. It returns once the underlying
// fsnotify watch is installed; the watch loop itself runs in the
// background until Stop or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("config watcher: timed out installing file watch on %q", w.path)
	}
}

// Stop implements lifecycle.Component.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.ErrorWithFields("failed to create file watcher", logging.Field("error", err.Error()))
		return
	}
	defer fsw.Close()

	if err := fsw.Add(w.path); err != nil {
		w.logger.ErrorWithFields("failed to watch config file",
			logging.Field("path", w.path), logging.Field("error", err.Error()))
		return
	}

	w.logger.InfoWithFields("watching config file for changes", logging.Field("path", w.path))
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Editors often replace a file via rename/remove-then-create;
			// the inode changes, so the watch must be re-armed.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(50 * time.Millisecond)
				if err := fsw.Add(w.path); err != nil {
					w.logger.WarnWithFields("failed to re-add watch after rename/remove",
						logging.Field("error", err.Error()))
				}
			}
			w.scheduleReload(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.WarnWithFields("file watcher error", logging.Field("error", err.Error()))
		}
	}
}

func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		w.reload(ctx)
	})
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WarnWithFields("config reload failed, keeping previous config",
			logging.Field("error", err.Error()))
		return
	}
	if err := w.callback(cfg); err != nil {
		w.logger.WarnWithFields("config reload callback failed", logging.Field("error", err.Error()))
		return
	}
	w.logger.Info("config reloaded")
}
