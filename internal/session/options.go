package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"k8s.io/utils/clock"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
	"clusterwatch/internal/kubeconfig"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Backoff bounds the delay between reconnect attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	// Jitter is the randomization factor; 0 disables it.
	Jitter float64
}

// DefaultBackoff returns the reconnect policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: DefaultInitialBackoff,
		Max:     DefaultMaxBackoff,
		Jitter:  backoff.DefaultRandomizationFactor,
	}
}

func (b Backoff) policy() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	if b.Initial > 0 {
		eb.InitialInterval = b.Initial
	}
	if b.Max > 0 {
		eb.MaxInterval = b.Max
	}
	eb.RandomizationFactor = b.Jitter
	eb.Reset()
	return eb
}

// Observer receives lifecycle notifications. Implementations must be safe for
// concurrent use.
type Observer interface {
	SessionStarted(feed events.Feed)
	SessionClosed(feed events.Feed)
	SessionRestarted(feed events.Feed)
	NamespaceEvent(feed events.Feed, typ cluster.EventType)
	DecodeError(feed events.Feed)
}

type noopObserver struct{}

func (noopObserver) SessionStarted(events.Feed)                    {}
func (noopObserver) SessionClosed(events.Feed)                     {}
func (noopObserver) SessionRestarted(events.Feed)                  {}
func (noopObserver) NamespaceEvent(events.Feed, cluster.EventType) {}
func (noopObserver) DecodeError(events.Feed)                       {}

// Config holds a session's collaborators.
type Config struct {
	Context kubeconfig.Context
	Feed    events.Feed
	Client  cluster.Client
	Sink    events.Sink

	Backoff  Backoff
	Clock    clock.Clock
	Observer Observer
}

func (c *Config) setDefaults() {
	if c.Feed == "" {
		c.Feed = events.FeedFleet
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Observer == nil {
		c.Observer = noopObserver{}
	}
}
