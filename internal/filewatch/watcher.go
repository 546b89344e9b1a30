package filewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"clusterwatch/pkg/logging"
)

// Watch starts watching path and calls handler after each debounced burst of
// changes. If the parent directory cannot be watched with fsnotify it falls
// back to polling.
func Watch(path string, opts Options, handler Handler) (Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("filewatch: empty path")
	}
	if handler == nil {
		return nil, fmt.Errorf("filewatch: nil handler")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filewatch: resolve %s: %w", path, err)
	}

	if !opts.Poll {
		w, err := newNotifyWatcher(abs, opts.Interval, handler)
		if err == nil {
			return w, nil
		}
		logging.Warn("FileWatch", "Cannot watch %s with fsnotify, falling back to polling: %v", filepath.Dir(abs), err)
	}

	return newPollWatcher(abs, opts.Interval, handler), nil
}

// notifyWatcher watches the directories a file lives in with fsnotify: its
// parent and, when the file is a symlink, the directory of the link target.
// Directories that are removed and re-created are watched again.
type notifyWatcher struct {
	emitter

	path     string
	interval time.Duration
	watcher  *fsnotify.Watcher

	// target is the resolved symlink target of path, or "" when path is not
	// a link. dirs maps each watched directory to its stat result when the
	// watch was added, nil while it is not armed. Both are owned by the
	// processEvents goroutine after construction.
	target string
	dirs   map[string]os.FileInfo

	timerMu sync.Mutex
	timer   *time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

func newNotifyWatcher(path string, interval time.Duration, handler Handler) (*notifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	w := &notifyWatcher{
		emitter:  emitter{handler: handler},
		path:     path,
		interval: interval,
		watcher:  fw,
		dirs:     map[string]os.FileInfo{dir: nil},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.resolveTarget()
	w.arm()

	if w.dirs[dir] == nil {
		fw.Close()
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("cannot watch %s", dir)
	}

	go w.processEvents()

	logging.Debug("FileWatch", "Watching %s via directory %s", path, dir)
	return w, nil
}

func (w *notifyWatcher) Path() string { return w.path }

// processEvents handles filesystem events until Close. Every interval it
// re-arms directories that disappeared and follows a re-pointed symlink.
func (w *notifyWatcher) processEvents() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FileWatch", err, "Filesystem watcher error for %s", w.path)

		case <-ticker.C:
			retargeted := w.resolveTarget()
			if w.arm() || retargeted {
				w.debounce()
			}
		}
	}
}

func (w *notifyWatcher) handleFsEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	if info, watched := w.dirs[name]; watched && event.Has(fsnotify.Remove|fsnotify.Rename) {
		if info != nil {
			_ = w.watcher.Remove(name)
			w.dirs[name] = nil
		}
		logging.Debug("FileWatch", "Directory %s of %s went away", name, w.path)
		w.debounce()
		return
	}

	if name != w.path && name != w.target {
		return
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	if name == w.path {
		w.resolveTarget()
		w.arm()
	}

	logging.Debug("FileWatch", "Filesystem event %s on %s", event.Op, event.Name)
	w.debounce()
}

// resolveTarget follows path if it is a symlink and updates the set of
// directories to watch. It reports whether the target changed.
func (w *notifyWatcher) resolveTarget() bool {
	target := ""
	if resolved, err := filepath.EvalSymlinks(w.path); err == nil && resolved != w.path {
		target = resolved
	}
	if target == w.target {
		return false
	}
	w.target = target

	want := map[string]bool{filepath.Dir(w.path): true}
	if target != "" {
		want[filepath.Dir(target)] = true
	}
	for dir, info := range w.dirs {
		if !want[dir] {
			if info != nil {
				_ = w.watcher.Remove(dir)
			}
			delete(w.dirs, dir)
		}
	}
	for dir := range want {
		if _, ok := w.dirs[dir]; !ok {
			w.dirs[dir] = nil
		}
	}
	return true
}

// arm adds a watch for every directory that exists but is not watched, was
// dropped by fsnotify, or was replaced by a new directory of the same name. It reports whether any
// watch was added.
func (w *notifyWatcher) arm() bool {
	active := make(map[string]bool)
	for _, dir := range w.watcher.WatchList() {
		active[filepath.Clean(dir)] = true
	}

	added := false
	for dir, armed := range w.dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if armed != nil {
				_ = w.watcher.Remove(dir)
				w.dirs[dir] = nil
			}
			continue
		}
		if armed != nil && active[dir] && os.SameFile(armed, info) {
			continue
		}
		if armed != nil {
			_ = w.watcher.Remove(dir)
		}
		if err := w.watcher.Add(dir); err != nil {
			logging.Debug("FileWatch", "Cannot watch directory %s yet: %v", dir, err)
			w.dirs[dir] = nil
			continue
		}
		w.dirs[dir] = info
		added = true
	}
	return added
}

// debounce restarts the quiet-period timer; the file is stat'ed when it fires.
func (w *notifyWatcher) debounce() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, func() {
		w.timerMu.Lock()
		w.timer = nil
		w.timerMu.Unlock()

		w.emit(kindOf(w.path))
	})
}

// Close stops the watcher.
func (w *notifyWatcher) Close() error {
	if !w.markClosed() {
		return nil
	}

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerMu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	w.waitIdle()

	logging.Debug("FileWatch", "Stopped watching %s", w.path)
	return err
}
