package events

import (
	"context"
	"sync"
	"time"
)

// DefaultBuffer is the default capacity of the publisher's input channel.
const DefaultBuffer = 256

// Sink accepts events from producers.
type Sink interface {
	// Send blocks until ev is accepted, ctx is done or the sink is closed.
	// It reports whether ev was accepted.
	Send(ctx context.Context, ev Event) bool
}

// Publisher is the single ordered sink between the engine and the host.
type Publisher struct {
	in  chan Event
	out chan Event

	now func() time.Time

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPublisher creates a publisher and starts forwarding. buffer <= 0 uses
// DefaultBuffer.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	p := &Publisher{
		in:     make(chan Event, buffer),
		out:    make(chan Event),
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go p.forward()
	return p
}

// Events returns the host-facing channel. It is closed after Close.
func (p *Publisher) Events() <-chan Event {
	return p.out
}

// Send implements Sink.
func (p *Publisher) Send(ctx context.Context, ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = p.now()
	}

	select {
	case <-p.stopCh:
		return false
	default:
	}

	select {
	case p.in <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-p.stopCh:
		return false
	}
}

func (p *Publisher) forward() {
	defer close(p.doneCh)
	defer close(p.out)

	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.in:
			select {
			case p.out <- ev:
			case <-p.stopCh:
				return
			}
		}
	}
}

// Close stops forwarding and closes Events. Events still buffered are dropped.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.doneCh
}
