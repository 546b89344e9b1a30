package registry

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"clusterwatch/internal/events"
	"clusterwatch/internal/kubeconfig"
	"clusterwatch/internal/session"
)

type fakeSession struct {
	mu         sync.Mutex
	name       string
	state      session.State
	generation uint64
	starts     int
	cancels    int
}

func (s *fakeSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.state == session.StateIdle {
		s.generation++
		s.state = session.StateStreaming
	}
}

func (s *fakeSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.state = session.StateClosed
}

func (s *fakeSession) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeSession
}

func (f *fakeFactory) New(kctx kubeconfig.Context) Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSession{name: kctx.Name, state: session.StateIdle}
	f.created = append(f.created, s)
	return s
}

func (f *fakeFactory) totals() (starts, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.created {
		starts += s.starts
		cancels += s.cancels
	}
	return starts, cancels
}

func contexts(names ...string) []kubeconfig.Context {
	out := make([]kubeconfig.Context, 0, len(names))
	for _, n := range names {
		out = append(out, kubeconfig.Context{Name: n, Cluster: n + "-cluster", User: "admin"})
	}
	return out
}

func TestRegistry_ReplaceScenario(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	diff := r.Reconcile(contexts("default", "staging"))
	assert.Equal(t, []string{"default", "staging"}, diff.Added)
	assert.Empty(t, diff.Removed)

	staging, ok := r.Get("staging")
	require.True(t, ok)
	stagingGen := staging.Generation()

	diff = r.Reconcile(contexts("staging", "prod"))
	assert.Equal(t, []string{"prod"}, diff.Added)
	assert.Equal(t, []string{"default"}, diff.Removed)
	assert.Equal(t, []string{"prod", "staging"}, r.Names())

	stagingAfter, ok := r.Get("staging")
	require.True(t, ok)
	assert.Same(t, staging, stagingAfter)
	assert.Equal(t, stagingGen, stagingAfter.Generation())

	starts, cancels := factory.totals()
	assert.Equal(t, 3, starts)
	assert.Equal(t, 1, cancels)
	assert.Equal(t, session.StateClosed, factory.created[0].State())
}

func TestRegistry_Idempotent(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	r.Reconcile(contexts("a", "b", "c"))
	diff := r.Reconcile(contexts("a", "b", "c"))

	assert.True(t, diff.Empty())
	starts, cancels := factory.totals()
	assert.Equal(t, 3, starts)
	assert.Equal(t, 0, cancels)
	assert.Len(t, factory.created, 3)
}

func TestRegistry_FailSafeOnEmpty(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	r.Reconcile(contexts("a", "b", "c"))
	diff := r.Reconcile(nil)

	assert.Equal(t, []string{"a", "b", "c"}, diff.Removed)
	assert.Equal(t, 0, r.Len())
	for _, s := range factory.created {
		assert.Equal(t, session.StateClosed, s.State())
	}
}

func TestRegistry_Convergence(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e", "f"}
	rng := rand.New(rand.NewSource(1))

	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	for i := 0; i < 200; i++ {
		var names []string
		for _, n := range pool {
			if rng.Intn(2) == 0 {
				names = append(names, n)
			}
		}
		r.Reconcile(contexts(names...))

		sort.Strings(names)
		if names == nil {
			names = []string{}
		}
		require.Equal(t, names, r.Names(), "iteration %d", i)
	}

	live := map[string]int{}
	for _, s := range factory.created {
		if s.State().Live() {
			live[s.name]++
		}
	}
	for name, n := range live {
		assert.Equal(t, 1, n, "context %s has %d live sessions", name, n)
	}
	assert.Equal(t, r.Len(), len(live))
}

func TestRegistry_Redefined(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	r.Reconcile([]kubeconfig.Context{{Name: "prod", Cluster: "old", User: "admin"}})
	diff := r.Reconcile([]kubeconfig.Context{{Name: "prod", Cluster: "new", User: "admin"}})

	assert.True(t, diff.Empty())
	require.Len(t, diff.Redefined, 1)
	assert.Equal(t, "old", diff.Redefined[0].Previous.Cluster)
	assert.Equal(t, "new", diff.Redefined[0].Current.Cluster)
	assert.Len(t, factory.created, 1)
	assert.Equal(t, "new", r.Contexts()[0].Cluster)

	diff = r.Reconcile([]kubeconfig.Context{{Name: "prod", Cluster: "new", User: "admin"}})
	assert.Empty(t, diff.Redefined)
}

func TestRegistry_IgnoresDuplicatesAndUnnamed(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	desired := append(contexts("a", "a"), kubeconfig.Context{})
	diff := r.Reconcile(desired)

	assert.Equal(t, []string{"a"}, diff.Added)
	assert.Len(t, factory.created, 1)
}

func TestRegistry_CancelAll(t *testing.T) {
	factory := &fakeFactory{}
	r := New("fleet", factory.New)

	r.Reconcile(contexts("b", "a"))
	assert.Equal(t, []string{"a", "b"}, r.CancelAll())
	assert.Equal(t, 0, r.Len())

	_, ok := r.Get("a")
	assert.False(t, ok)
}

// Real sessions: after cancelling a context and re-adding it, only the
// new session's events reach the sink.
type chanSink chan events.Event

func (c chanSink) Send(ctx context.Context, ev events.Event) bool {
	select {
	case c <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

type watchPerCall struct {
	mu      sync.Mutex
	opened  []*watch.RaceFreeFakeWatcher
	openedC chan struct{}
}

func (w *watchPerCall) WatchNamespaces(ctx context.Context, kctx kubeconfig.Context) (watch.Interface, error) {
	fw := watch.NewRaceFreeFake()
	w.mu.Lock()
	w.opened = append(w.opened, fw)
	w.mu.Unlock()
	w.openedC <- struct{}{}
	return fw, nil
}

func namespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func TestRegistry_RealSessionsNoZombieEvents(t *testing.T) {
	client := &watchPerCall{openedC: make(chan struct{}, 8)}
	sink := make(chanSink, 8)
	r := New("fleet", func(kctx kubeconfig.Context) Session {
		return session.New(session.Config{Context: kctx, Client: client, Sink: sink})
	})
	defer r.CancelAll()

	r.Reconcile(contexts("ctx1"))
	<-client.openedC

	r.Reconcile(nil)
	r.Reconcile(contexts("ctx1"))
	<-client.openedC

	client.mu.Lock()
	old, current := client.opened[0], client.opened[1]
	client.mu.Unlock()

	old.Add(namespace("zombie"))
	current.Add(namespace("fresh"))

	ev := <-sink
	assert.Equal(t, "fresh", ev.Namespace)
	assert.Equal(t, uint64(1), ev.Generation)
	assert.Empty(t, sink)
}
