// Package filewatch notifies about changes to a single file.
//
// The default implementation watches the file's parent directory with fsnotify,
// which catches in-place writes, atomic rename-over saves, deletion and
// re-creation. Bursts of filesystem events are debounced into one
// notification. When the directory cannot be watched, a stat-polling watcher
// is used instead.
package filewatch

import "time"

// Kind describes what happened to the watched file.
type Kind string

const (
	// Changed means the file exists and may have new content.
	Changed Kind = "Changed"

	// Removed means the file no longer exists.
	Removed Kind = "Removed"
)

// DefaultInterval is the debounce window and polling period.
const DefaultInterval = time.Second

// Handler receives notifications. It must not call Close on the handle that
// invoked it.
type Handler func(Kind)

// Handle is an active watch.
type Handle interface {
	// Close stops the watch. It is idempotent, and once it returns the
	// handler is not invoked again.
	Close() error

	// Path returns the watched path.
	Path() string
}

// Options configures a watch.
type Options struct {
	// Interval is the debounce window (fsnotify) or the polling period.
	// Defaults to DefaultInterval.
	Interval time.Duration

	// Poll forces the stat-polling implementation.
	Poll bool
}
