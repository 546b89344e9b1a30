package filewatch

import (
	"os"
	"time"

	"clusterwatch/pkg/logging"
)

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// pollWatcher compares the file's stat result every interval.
type pollWatcher struct {
	emitter

	path   string
	ticker *time.Ticker
	last   fileState

	stopCh chan struct{}
	doneCh chan struct{}
}

func newPollWatcher(path string, interval time.Duration, handler Handler) *pollWatcher {
	w := &pollWatcher{
		emitter: emitter{handler: handler},
		path:    path,
		ticker:  time.NewTicker(interval),
		last:    statFile(path),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.loop()

	logging.Debug("FileWatch", "Polling %s every %v", path, interval)
	return w
}

func (w *pollWatcher) Path() string { return w.path }

func (w *pollWatcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case <-w.ticker.C:
			current := statFile(w.path)
			if current == w.last {
				continue
			}
			w.last = current
			if current.exists {
				w.emit(Changed)
			} else {
				w.emit(Removed)
			}
		}
	}
}

// Close stops polling.
func (w *pollWatcher) Close() error {
	if !w.markClosed() {
		return nil
	}
	w.ticker.Stop()
	close(w.stopCh)
	<-w.doneCh
	w.waitIdle()
	return nil
}
