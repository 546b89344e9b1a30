package kubeconfig

// Context is a named cluster/user pairing from a credentials file.
// Identity is Name; two reads describe the same context iff the names match.
type Context struct {
	Name      string `json:"name" yaml:"name"`
	Cluster   string `json:"cluster" yaml:"cluster"`
	User      string `json:"user" yaml:"user"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// Equal reports whether every field of c and o matches.
func (c Context) Equal(o Context) bool {
	return c == o
}

// Config is one snapshot of a credentials file. It is replaced wholesale on
// every read and never mutated after Read returns it.
type Config struct {
	Path           string    `json:"path" yaml:"path"`
	CurrentContext string    `json:"currentContext,omitempty" yaml:"currentContext,omitempty"`
	Contexts       []Context `json:"contexts" yaml:"contexts"`
	Valid          bool      `json:"valid" yaml:"valid"`
	Error          string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Invalid returns the fail-safe config for path.
func Invalid(path string, reason string) Config {
	return Config{
		Path:     path,
		Contexts: []Context{},
		Valid:    false,
		Error:    reason,
	}
}

// Names returns the context names in file order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Contexts))
	for _, ctx := range c.Contexts {
		names = append(names, ctx.Name)
	}
	return names
}

// Lookup finds a context by name.
func (c Config) Lookup(name string) (Context, bool) {
	for _, ctx := range c.Contexts {
		if ctx.Name == name {
			return ctx, true
		}
	}
	return Context{}, false
}

// Active picks the context focused mode should follow. override wins over the
// file's current-context. If neither names an existing context the first
// context is used and fellBack is true. ok is false only when there are no
// contexts at all.
func (c Config) Active(override string) (ctx Context, fellBack bool, ok bool) {
	want := override
	if want == "" {
		want = c.CurrentContext
	}
	if want != "" {
		if found, exists := c.Lookup(want); exists {
			return found, false, true
		}
	}
	if len(c.Contexts) == 0 {
		return Context{}, false, false
	}
	return c.Contexts[0], true, true
}
