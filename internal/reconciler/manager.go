package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
	"clusterwatch/internal/filewatch"
	"clusterwatch/internal/kubeconfig"
	"clusterwatch/internal/registry"
	"clusterwatch/internal/session"
	"clusterwatch/pkg/logging"
)

// Manager keeps the watch sessions in step with the kubeconfig file.
//
// It owns:
//   - the file watch on the kubeconfig
//   - the periodic timer
//   - a single-worker coalescing queue, so passes never interleave
//   - the fleet registry (one session per context)
//   - the focused session (the current context)
//   - the event publisher
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	publisher *events.Publisher
	templates *events.MessageTemplateEngine
	queue     ReconcileQueue
	fleet     *registry.Registry

	// path is the kubeconfig followed; watch is its file watch.
	path  string
	watch filewatch.Handle

	// fileRemoved is set by a Removed notification and cleared by the next
	// Changed one. While set, passes do not read the file.
	fileRemoved bool

	// contextOverride, when set, replaces the file's current-context.
	contextOverride string

	// current is the last config snapshot.
	current kubeconfig.Config

	focused        *session.Session
	focusedContext kubeconfig.Context

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	running bool
	stopped bool
}

// NewManager creates a manager. Nothing runs until Start.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("cluster client is required")
	}
	if !config.Fleet && !config.Focused {
		return nil, fmt.Errorf("at least one of fleet or focused mode must be enabled")
	}
	config.setDefaults()

	m := &Manager{
		config:    config,
		publisher: events.NewPublisher(config.EventBuffer),
		templates: events.NewMessageTemplateEngine(),
		queue:     NewQueue(),
		path:      config.KubeconfigPath,
		current:   kubeconfig.Invalid(config.KubeconfigPath, "not read yet"),
	}
	m.fleet = registry.New(string(events.FeedFleet), func(kctx kubeconfig.Context) registry.Session {
		return m.newSession(kctx, events.FeedFleet)
	})
	return m, nil
}

func (m *Manager) newSession(kctx kubeconfig.Context, feed events.Feed) *session.Session {
	cfg := session.Config{
		Context: kctx,
		Feed:    feed,
		Client:  m.config.Client,
		Sink:    m.publisher,
		Backoff: m.config.Backoff,
		Clock:   m.config.Clock,
	}
	if m.config.Metrics != nil {
		cfg.Observer = m.config.Metrics
	}
	return session.New(cfg)
}

// Events returns the channel the host consumes. It is closed by Stop.
func (m *Manager) Events() <-chan events.Event {
	return m.publisher.Events()
}

// Start opens the file watch, starts the timer and the worker, and queues
// the first pass.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("manager already stopped")
	}
	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true
	path := m.path
	m.mu.Unlock()

	m.openWatch(path)

	if len(m.config.IgnoredKubeconfigs) > 0 {
		m.warn(events.ReasonMultipleKubeconfigs, events.EventData{
			Path:    m.config.KubeconfigPath,
			Ignored: m.config.IgnoredKubeconfigs,
		})
	}

	m.wg.Add(2)
	go m.worker()
	go m.runTicker()

	m.enqueue(TriggerStartup)

	logging.Info("ReconcileManager", "Started (fleet=%t focused=%t interval=%v) for %s",
		m.config.Fleet, m.config.Focused, m.config.ReconcileInterval, path)
	return nil
}

// openWatch starts watching path unless the manager moved on meanwhile.
func (m *Manager) openWatch(path string) {
	if path == "" {
		return
	}

	h, err := m.config.Watch(path, filewatch.Options{Interval: m.config.FileWatchInterval, Poll: m.config.FileWatchPoll}, func(kind filewatch.Kind) {
		m.onFileEvent(path, kind)
	})
	if err != nil {
		logging.Error("ReconcileManager", err, "Failed to watch %s", path)
		m.warn(events.ReasonFileWatchFailed, events.EventData{Path: path, Error: err.Error()})
		return
	}

	m.mu.Lock()
	if !m.running || m.path != path || m.watch != nil {
		m.mu.Unlock()
		h.Close()
		return
	}
	m.watch = h
	m.mu.Unlock()
}

// closeWatch detaches and closes the current file watch. It must be called
// without m.mu held: Close waits for a running handler, which takes m.mu.
func (m *Manager) closeWatch() error {
	m.mu.Lock()
	h := m.watch
	m.watch = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}

func (m *Manager) onFileEvent(path string, kind filewatch.Kind) {
	m.mu.Lock()
	if m.path != path {
		m.mu.Unlock()
		return
	}
	m.fileRemoved = kind == filewatch.Removed
	m.mu.Unlock()

	logging.Debug("ReconcileManager", "Kubeconfig %s: %s", path, kind)
	if kind == filewatch.Removed {
		m.enqueue(TriggerFileRemoved)
	} else {
		m.enqueue(TriggerFileChanged)
	}
}

func (m *Manager) runTicker() {
	defer m.wg.Done()

	ticker := m.config.Clock.NewTicker(m.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C():
			m.enqueue(TriggerPeriodic)
		}
	}
}

func (m *Manager) enqueue(t Trigger) {
	m.queue.Add(ReconcileRequest{
		Key:       reconcileKey,
		Triggers:  []Trigger{t},
		Timestamp: time.Now(),
	})
}

// worker runs passes one at a time.
func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Worker shutting down")
			return
		}

		m.reconcile(req)
		m.queue.Done(req)
	}
}

// reconcile is one pass: read, publish, converge fleet, update focused.
func (m *Manager) reconcile(req ReconcileRequest) {
	m.mu.RLock()
	path := m.path
	removed := m.fileRemoved
	override := m.contextOverride
	previous := m.current
	m.mu.RUnlock()

	logging.Debug("ReconcileManager", "Reconciling %s (triggers %v)", path, req.Triggers)
	m.config.Metrics.RecordPass(req.Triggers)

	var cfg kubeconfig.Config
	if removed {
		cfg = kubeconfig.Invalid(path, "kubeconfig file was removed")
	} else {
		cfg = m.config.Read(path)
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	m.send(events.ConfigReplaced(cfg))

	if !cfg.Valid && (previous.Valid || previous.Error != cfg.Error || previous.Path != cfg.Path) {
		m.warn(events.ReasonConfigInvalid, events.EventData{Path: path, Error: cfg.Error})
	}

	if m.config.Fleet {
		var desired []kubeconfig.Context
		if cfg.Valid {
			desired = cfg.Contexts
		}
		diff := m.fleet.Reconcile(desired)
		for _, r := range diff.Redefined {
			m.warnRedefined(r.Previous, r.Current)
		}
	}

	if m.config.Focused {
		m.reconcileFocused(cfg, override, req)
	}
}

// reconcileFocused replaces the focused session when the effective context
// changed or a trigger other than the timer asked for it.
func (m *Manager) reconcileFocused(cfg kubeconfig.Config, override string, req ReconcileRequest) {
	var (
		target   kubeconfig.Context
		fellBack bool
		ok       bool
	)
	if cfg.Valid {
		target, fellBack, ok = cfg.Active(override)
	}

	m.mu.Lock()
	old := m.focused
	oldContext := m.focusedContext
	m.mu.Unlock()

	if !ok {
		if old != nil {
			m.replaceFocused(nil, kubeconfig.Context{})
			logging.Info("ReconcileManager", "Stopped focused session for %s", oldContext.Name)
		}
		return
	}

	rebuild := false
	for _, t := range req.Triggers {
		if t.rebuildsFocused() {
			rebuild = true
			break
		}
	}

	if old != nil && oldContext.Name == target.Name && !rebuild {
		if !oldContext.Equal(target) {
			if !m.config.Fleet {
				m.warnRedefined(oldContext, target)
			}
			m.mu.Lock()
			m.focusedContext = target
			m.mu.Unlock()
		}
		return
	}

	if fellBack {
		requested := override
		if requested == "" {
			requested = cfg.CurrentContext
		}
		m.warn(events.ReasonContextFallback, events.EventData{Context: target.Name, Requested: requested})
	}

	s := m.newSession(target, events.FeedFocused)
	m.replaceFocused(s, target)
	logging.Info("ReconcileManager", "Focused session now follows %s", target.Name)
}

// replaceFocused cancels the current focused session and installs s.
func (m *Manager) replaceFocused(s *session.Session, kctx kubeconfig.Context) {
	m.mu.Lock()
	old := m.focused
	m.focused = s
	m.focusedContext = kctx
	m.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	if s != nil {
		s.Start()
	}
}

func (m *Manager) send(ev events.Event) {
	if !m.publisher.Send(m.ctx, ev) {
		logging.Debug("ReconcileManager", "Dropped %s event during shutdown", ev.Kind)
	}
}

func (m *Manager) warn(reason events.Reason, data events.EventData) {
	ev := m.templates.Warning(reason, data)
	logging.Warn("ReconcileManager", "%s", ev.Message)
	m.config.Metrics.RecordWarning(reason)
	m.send(ev)
}

func (m *Manager) warnRedefined(previous, current kubeconfig.Context) {
	m.warn(events.ReasonContextRedefined, events.EventData{
		Context:  current.Name,
		Previous: previous,
		Current:  current,
	})
}

// SetCurrentContext overrides the file's current-context and queues a pass.
// An empty name returns to the file's value.
func (m *Manager) SetCurrentContext(name string) {
	m.mu.Lock()
	m.contextOverride = name
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Current context set to %q", name)
	m.enqueue(TriggerContextSwitch)
}

// SetKubeconfigPath switches to another kubeconfig file: the old file watch
// is closed before the new one is opened, and a pass is queued.
func (m *Manager) SetKubeconfigPath(path string) {
	m.mu.Lock()
	m.path = path
	m.fileRemoved = false
	running := m.running
	m.mu.Unlock()

	if err := m.closeWatch(); err != nil {
		logging.Warn("ReconcileManager", "Failed to close previous file watch: %v", err)
	}
	if running {
		m.openWatch(path)
	}

	if ps, ok := m.config.Client.(cluster.PathSetter); ok {
		ps.SetPath(path)
	}

	logging.Info("ReconcileManager", "Kubeconfig path set to %s", path)
	m.enqueue(TriggerPathChanged)
}

// Trigger queues a pass with the same effect as the periodic timer.
func (m *Manager) Trigger() {
	m.enqueue(TriggerManual)
}

// Stop cancels every session, closes the file watch, stops the timer and the
// worker, and closes the event channel.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Stopping reconciliation manager...")

	watchErr := m.closeWatch()

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.queue.Shutdown()
	if wasRunning {
		m.wg.Wait()
	}

	m.fleet.CancelAll()
	m.replaceFocused(nil, kubeconfig.Context{})
	m.publisher.Close()

	logging.Info("ReconcileManager", "Reconciliation manager stopped")
	if watchErr != nil {
		return fmt.Errorf("failed to close file watch: %w", watchErr)
	}
	return nil
}

// Config returns the last kubeconfig snapshot.
func (m *Manager) Config() kubeconfig.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Path returns the kubeconfig path being followed.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// FleetContexts returns the names of contexts with a fleet session.
func (m *Manager) FleetContexts() []string {
	return m.fleet.Names()
}

// FocusedContext returns the context the focused session follows.
func (m *Manager) FocusedContext() (kubeconfig.Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focusedContext, m.focused != nil
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the current queue length.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}
