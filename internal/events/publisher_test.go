package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterwatch/internal/kubeconfig"
)

func receive(t *testing.T, p *Publisher) Event {
	t.Helper()
	select {
	case ev, ok := <-p.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestPublisher_PreservesProducerOrder(t *testing.T) {
	p := NewPublisher(4)
	defer p.Close()

	ctx := context.Background()
	go func() {
		p.Send(ctx, NamespaceAdded(FeedFleet, "ctx1", "a"))
		p.Send(ctx, NamespaceAdded(FeedFleet, "ctx1", "b"))
		p.Send(ctx, NamespaceRemoved(FeedFleet, "ctx1", "a"))
	}()

	got := []Event{receive(t, p), receive(t, p), receive(t, p)}
	assert.Equal(t, KindNamespaceAdded, got[0].Kind)
	assert.Equal(t, "a", got[0].Namespace)
	assert.Equal(t, KindNamespaceAdded, got[1].Kind)
	assert.Equal(t, "b", got[1].Namespace)
	assert.Equal(t, KindNamespaceRemoved, got[2].Kind)
	assert.Equal(t, "a", got[2].Namespace)
	for _, ev := range got {
		assert.False(t, ev.Time.IsZero())
		assert.Equal(t, FeedFleet, ev.Feed)
	}
}

func TestPublisher_OrderPerProducerWithManyProducers(t *testing.T) {
	p := NewPublisher(1)
	defer p.Close()

	const producers, perProducer = 5, 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(ctxName string) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				p.Send(context.Background(), NamespaceAdded(FeedFleet, ctxName, fmt.Sprintf("%03d", j)))
			}
		}(fmt.Sprintf("ctx%d", i))
	}

	last := map[string]string{}
	for i := 0; i < producers*perProducer; i++ {
		ev := receive(t, p)
		assert.Greater(t, ev.Namespace, last[ev.Context], "out of order for %s", ev.Context)
		last[ev.Context] = ev.Namespace
	}
	wg.Wait()
}

func TestPublisher_SendHonoursContext(t *testing.T) {
	p := NewPublisher(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	// Nobody reads Events: one event sits in out, one in the buffer.
	require.True(t, p.Send(ctx, Warning(ReasonConfigInvalid, "one")))
	require.Eventually(t, func() bool { return len(p.in) == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, p.Send(ctx, Warning(ReasonConfigInvalid, "two")))

	done := make(chan bool)
	go func() { done <- p.Send(ctx, Warning(ReasonConfigInvalid, "three")) }()

	cancel()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after cancel")
	}
}

func TestPublisher_Close(t *testing.T) {
	p := NewPublisher(0)
	p.Close()
	p.Close()

	_, ok := <-p.Events()
	assert.False(t, ok)
	assert.False(t, p.Send(context.Background(), ConfigReplaced(kubeconfig.Config{})))
}

func TestConfigReplaced_CopiesConfig(t *testing.T) {
	cfg := kubeconfig.Config{Path: "/kube", Valid: true, Contexts: []kubeconfig.Context{{Name: "a"}}}
	ev := ConfigReplaced(cfg)

	cfg.Path = "/other"
	require.NotNil(t, ev.Config)
	assert.Equal(t, "/kube", ev.Config.Path)
	assert.Equal(t, KindConfigReplaced, ev.Kind)
}
