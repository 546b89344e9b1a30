// Package session implements a self-healing namespace watch for one context.
//
// A Session owns at most one open stream at a time. Every (re)connect starts
// a new generation with its own context.Context; events are forwarded only
// while their generation is current and the session is not closed, so a
// stream that outlives Cancel can never reach the sink.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
	"clusterwatch/pkg/logging"
)

// Session watches the namespaces of a single context.
type Session struct {
	cfg     Config
	id      string
	backoff *backoff.ExponentialBackOff

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc

	// fwd is held for reading by every forward and taken for writing by
	// Cancel, which therefore waits out any forward already in flight.
	fwd sync.RWMutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an idle session.
func New(cfg Config) *Session {
	cfg.setDefaults()
	return &Session{
		cfg:     cfg,
		id:      uuid.NewString(),
		backoff: cfg.Backoff.policy(),
		state:   StateIdle,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Name returns the context name.
func (s *Session) Name() string { return s.cfg.Context.Name }

// ID returns the random identifier of this session incarnation.
func (s *Session) ID() string { return s.id }

// Feed returns the feed the session publishes to.
func (s *Session) Feed() events.Feed { return s.cfg.Feed }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the current generation. It is 0 before Start.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Done is closed once the session has closed and its goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Start connects the session. It is a no-op unless the session is Idle.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return
	}
	ctx, gen := s.nextGenerationLocked()
	s.cfg.Observer.SessionStarted(s.cfg.Feed)
	logging.Debug("Session", "Starting %s session %s for context %s", s.cfg.Feed, s.id, s.Name())

	go s.run(ctx, gen)
}

// Cancel closes the session. After it returns no further event from this
// session reaches the sink. Safe to call more than once.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	neverStarted := s.state == StateIdle
	s.state = StateClosed
	cancel := s.cancel
	close(s.stopCh)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.fwd.Lock()
	s.fwd.Unlock() //nolint:staticcheck

	if neverStarted {
		close(s.doneCh)
		return
	}
	s.cfg.Observer.SessionClosed(s.cfg.Feed)
	logging.Debug("Session", "Cancelled %s session %s for context %s", s.cfg.Feed, s.id, s.Name())
}

// nextGenerationLocked opens a new generation. Caller holds s.mu.
func (s *Session) nextGenerationLocked() (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateConnecting
	return ctx, s.generation
}

// transition moves from one state to another if gen is still current.
func (s *Session) transition(gen uint64, from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) run(ctx context.Context, gen uint64) {
	defer close(s.doneCh)

	for {
		produced := s.stream(ctx, gen)

		var ok bool
		ctx, gen, ok = s.restart(gen, produced)
		if !ok {
			return
		}
	}
}

// stream consumes one watch until it ends. It reports whether the stream
// delivered at least one decodable event.
func (s *Session) stream(ctx context.Context, gen uint64) bool {
	name := s.Name()

	w, err := s.cfg.Client.WatchNamespaces(ctx, s.cfg.Context)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("Session", "Failed to open namespace watch for context %s: %v", name, err)
		}
		return false
	}
	defer w.Stop()

	if !s.transition(gen, StateConnecting, StateStreaming) {
		return false
	}
	logging.Debug("Session", "Streaming namespaces for context %s (generation %d)", name, gen)

	produced := false
	for {
		select {
		case <-ctx.Done():
			return produced

		case ev, ok := <-w.ResultChan():
			if !ok {
				logging.Debug("Session", "Namespace watch for context %s ended", name)
				return produced
			}

			d, err := cluster.Decode(ev)
			if err != nil {
				if errors.Is(err, cluster.ErrStreamError) {
					logging.Warn("Session", "Namespace watch for context %s failed: %v", name, err)
					return produced
				}
				s.cfg.Observer.DecodeError(s.cfg.Feed)
				logging.Warn("Session", "Skipping event from context %s: %v", name, err)
				continue
			}

			produced = true
			if !d.Forward() {
				continue
			}
			if !s.forward(ctx, gen, d) {
				return produced
			}
		}
	}
}

// forward delivers a decoded event if gen is current and the session is
// streaming.
func (s *Session) forward(ctx context.Context, gen uint64, d cluster.Decoded) bool {
	s.fwd.RLock()
	defer s.fwd.RUnlock()

	s.mu.Lock()
	live := s.generation == gen && s.state == StateStreaming
	s.mu.Unlock()
	if !live {
		return false
	}

	var ev events.Event
	if d.Type == cluster.EventAdded {
		ev = events.NamespaceAdded(s.cfg.Feed, s.Name(), d.Name)
	} else {
		ev = events.NamespaceRemoved(s.cfg.Feed, s.Name(), d.Name)
	}
	ev.Generation = gen

	if !s.cfg.Sink.Send(ctx, ev) {
		return false
	}
	s.cfg.Observer.NamespaceEvent(s.cfg.Feed, d.Type)
	return true
}

// nextDelay returns the wait before the next reconnect. The policy starts
// over after a stream that produced events, and jitter never pushes the
// delay past the configured maximum.
func (s *Session) nextDelay(produced bool) time.Duration {
	if produced {
		s.backoff.Reset()
	}
	delay := s.backoff.NextBackOff()
	if delay > s.backoff.MaxInterval {
		delay = s.backoff.MaxInterval
	}
	return delay
}

// restart waits out the backoff delay and opens the next generation. It
// returns false once the session is closed or gen went stale.
func (s *Session) restart(gen uint64, produced bool) (context.Context, uint64, bool) {
	delay := s.nextDelay(produced)

	s.mu.Lock()
	if s.state == StateClosed || s.generation != gen {
		s.mu.Unlock()
		return nil, 0, false
	}
	s.cancel()
	s.state = StateBackoff
	s.mu.Unlock()

	logging.Debug("Session", "Reconnecting context %s in %v", s.Name(), delay)

	timer := s.cfg.Clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-s.stopCh:
		return nil, 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBackoff || s.generation != gen {
		return nil, 0, false
	}
	ctx, next := s.nextGenerationLocked()
	s.cfg.Observer.SessionRestarted(s.cfg.Feed)
	return ctx, next, true
}
