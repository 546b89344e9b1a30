package reconciler

import (
	"context"
	"sort"
	"time"

	"k8s.io/utils/clock"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
	"clusterwatch/internal/filewatch"
	"clusterwatch/internal/kubeconfig"
	"clusterwatch/internal/session"
)

// Trigger is the cause of a reconciliation pass.
type Trigger string

const (
	// TriggerStartup is the initial pass run by Start.
	TriggerStartup Trigger = "Startup"

	// TriggerFileChanged means the kubeconfig file was written or re-created.
	TriggerFileChanged Trigger = "FileChanged"

	// TriggerFileRemoved means the kubeconfig file disappeared.
	TriggerFileRemoved Trigger = "FileRemoved"

	// TriggerPeriodic is the coarse timer.
	TriggerPeriodic Trigger = "Periodic"

	// TriggerContextSwitch means the user selected another current context.
	TriggerContextSwitch Trigger = "ContextSwitch"

	// TriggerPathChanged means the engine was pointed at another kubeconfig.
	TriggerPathChanged Trigger = "PathChanged"

	// TriggerManual is an explicit request from the host.
	TriggerManual Trigger = "Manual"
)

// rebuildsFocused reports whether a trigger replaces the focused session
// even when the current context keeps its name.
func (t Trigger) rebuildsFocused() bool {
	switch t {
	case TriggerPeriodic, TriggerManual:
		return false
	default:
		return true
	}
}

// ReconcileRequest asks for one pass. Requests with the same Key are merged
// while they wait, so one pass may answer several triggers.
type ReconcileRequest struct {
	// Key identifies what to reconcile.
	Key string

	// Triggers lists every cause merged into this request.
	Triggers []Trigger

	// Timestamp is when the first merged trigger fired.
	Timestamp time.Time
}

// Has reports whether t is among the merged triggers.
func (r ReconcileRequest) Has(t Trigger) bool {
	for _, existing := range r.Triggers {
		if existing == t {
			return true
		}
	}
	return false
}

// merge folds other into r, keeping the earliest timestamp.
func (r ReconcileRequest) merge(other ReconcileRequest) ReconcileRequest {
	merged := ReconcileRequest{Key: r.Key, Timestamp: r.Timestamp}
	if merged.Timestamp.IsZero() || (!other.Timestamp.IsZero() && other.Timestamp.Before(merged.Timestamp)) {
		merged.Timestamp = other.Timestamp
	}
	merged.Triggers = append(merged.Triggers, r.Triggers...)
	for _, t := range other.Triggers {
		if !merged.Has(t) {
			merged.Triggers = append(merged.Triggers, t)
		}
	}
	sort.Slice(merged.Triggers, func(i, j int) bool { return merged.Triggers[i] < merged.Triggers[j] })
	return merged
}

// ReconcileQueue represents a queue of pending reconciliation passes.
type ReconcileQueue interface {
	// Add adds a request. A request whose key is already waiting or being
	// processed is merged instead of queued twice.
	Add(req ReconcileRequest)

	// Get retrieves the next request from the queue.
	// Blocks until a request is available or the context is cancelled.
	Get(ctx context.Context) (ReconcileRequest, bool)

	// Done marks a request as processed and releases any request merged
	// while it ran.
	Done(req ReconcileRequest)

	// Len returns the current queue length.
	Len() int

	// Shutdown signals the queue to stop accepting new items.
	Shutdown()
}

// WatchFunc opens a file watch. filewatch.Watch in production.
type WatchFunc func(path string, opts filewatch.Options, handler filewatch.Handler) (filewatch.Handle, error)

// ReadFunc reads a kubeconfig snapshot. kubeconfig.Read in production.
type ReadFunc func(path string) kubeconfig.Config

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// KubeconfigPath is the credentials file to follow.
	KubeconfigPath string

	// IgnoredKubeconfigs are further $KUBECONFIG entries that were skipped;
	// a warning is published on Start when non-empty.
	IgnoredKubeconfigs []string

	// Fleet enables one session per context.
	Fleet bool

	// Focused enables the session that follows the current context.
	Focused bool

	// ReconcileInterval is the period of the coarse timer.
	// Defaults to one hour.
	ReconcileInterval time.Duration

	// FileWatchInterval is the file watch debounce window / poll period.
	// Defaults to one second.
	FileWatchInterval time.Duration

	// FileWatchPoll forces the stat-polling file watch.
	FileWatchPoll bool

	// Backoff bounds the reconnect delay of every session.
	Backoff session.Backoff

	// EventBuffer is the publisher's input capacity.
	EventBuffer int

	// Client opens namespace watches.
	Client cluster.Client

	// Clock drives the periodic timer and session backoff.
	Clock clock.WithTicker

	// Metrics receives engine measurements; nil disables them.
	Metrics *Metrics

	// Watch and Read replace the filesystem collaborators in tests.
	Watch WatchFunc
	Read  ReadFunc
}

const (
	DefaultReconcileInterval = time.Hour

	// reconcileKey is the single key of the engine's work queue.
	reconcileKey = "kubeconfig"
)

func (c *ManagerConfig) setDefaults() {
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	if c.FileWatchInterval <= 0 {
		c.FileWatchInterval = filewatch.DefaultInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = events.DefaultBuffer
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Watch == nil {
		c.Watch = filewatch.Watch
	}
	if c.Read == nil {
		c.Read = kubeconfig.Read
	}
}
