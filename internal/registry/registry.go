// Package registry keeps exactly one watch session per desired context.
package registry

import (
	"sort"
	"sync"

	"clusterwatch/internal/kubeconfig"
	"clusterwatch/internal/session"
	"clusterwatch/pkg/logging"
)

// Session is the part of a watch session the registry drives.
type Session interface {
	Start()
	Cancel()
	State() session.State
	Generation() uint64
}

// Factory builds an idle session for a context.
type Factory func(kctx kubeconfig.Context) Session

// Redefinition records a context whose name stayed the same while its
// definition changed.
type Redefinition struct {
	Previous kubeconfig.Context
	Current  kubeconfig.Context
}

// Diff describes what a Reconcile call changed.
type Diff struct {
	Added     []string
	Removed   []string
	Redefined []Redefinition
}

// Empty reports whether nothing was started or cancelled.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

type entry struct {
	context kubeconfig.Context
	session Session
}

// Registry maps context names to sessions.
type Registry struct {
	name    string
	factory Factory

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry. name is used in log messages.
func New(name string, factory Factory) *Registry {
	return &Registry{
		name:    name,
		factory: factory,
		entries: make(map[string]*entry),
	}
}

// Reconcile converges the registry on desired. Sessions whose context is
// no longer desired are cancelled and dropped, missing ones are created and
// started, and the rest are left running. An empty desired set removes
// every session.
func (r *Registry) Reconcile(desired []kubeconfig.Context) Diff {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]kubeconfig.Context, len(desired))
	for _, kctx := range desired {
		if kctx.Name == "" {
			continue
		}
		if _, dup := want[kctx.Name]; !dup {
			want[kctx.Name] = kctx
		}
	}

	var diff Diff

	for name, e := range r.entries {
		if _, keep := want[name]; keep {
			continue
		}
		e.session.Cancel()
		delete(r.entries, name)
		diff.Removed = append(diff.Removed, name)
	}
	sort.Strings(diff.Removed)

	for _, kctx := range desired {
		current, ok := want[kctx.Name]
		if !ok || current != kctx {
			continue
		}

		if e, exists := r.entries[kctx.Name]; exists {
			if !e.context.Equal(kctx) {
				diff.Redefined = append(diff.Redefined, Redefinition{Previous: e.context, Current: kctx})
				e.context = kctx
			}
			continue
		}

		s := r.factory(kctx)
		r.entries[kctx.Name] = &entry{context: kctx, session: s}
		s.Start()
		diff.Added = append(diff.Added, kctx.Name)
	}

	if !diff.Empty() {
		logging.Info("Registry", "Reconciled %s sessions: added=%v removed=%v total=%d",
			r.name, diff.Added, diff.Removed, len(r.entries))
	}
	return diff
}

// Get returns the session for a context name.
func (r *Registry) Get(name string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.session, true
}

// Names returns the registered context names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contexts returns the context definitions the sessions were last
// reconciled against, sorted by name.
func (r *Registry) Contexts() []kubeconfig.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]kubeconfig.Context, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.context)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CancelAll cancels and drops every session.
func (r *Registry) CancelAll() []string {
	return r.Reconcile(nil).Removed
}
