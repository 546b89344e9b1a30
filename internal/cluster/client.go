package cluster

import (
	"context"
	"fmt"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"clusterwatch/internal/kubeconfig"
	"clusterwatch/pkg/logging"
)

// NamespacesGVR identifies the core namespaces resource.
var NamespacesGVR = schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}

// Client opens namespace watches.
type Client interface {
	// WatchNamespaces opens a watch on the namespace list of the cluster
	// behind kctx. The stream ends when ctx is cancelled or Stop is called.
	WatchNamespaces(ctx context.Context, kctx kubeconfig.Context) (watch.Interface, error)
}

// PathSetter is implemented by clients that read credentials from a
// kubeconfig file whose location can change at runtime.
type PathSetter interface {
	SetPath(path string)
}

// DynamicFactory creates a dynamic client from a REST config.
type DynamicFactory func(cfg *rest.Config) (dynamic.Interface, error)

// DefaultDynamicFactory wraps dynamic.NewForConfig.
func DefaultDynamicFactory(cfg *rest.Config) (dynamic.Interface, error) {
	return dynamic.NewForConfig(cfg)
}

// KubeClient is a Client backed by client-go.
type KubeClient struct {
	mu   sync.RWMutex
	path string

	userAgent  string
	newDynamic DynamicFactory
}

// Option configures a KubeClient.
type Option func(*KubeClient)

// WithDynamicFactory replaces the dynamic client constructor.
func WithDynamicFactory(f DynamicFactory) Option {
	return func(c *KubeClient) {
		c.newDynamic = f
	}
}

// WithUserAgent sets the user agent sent to API servers.
func WithUserAgent(ua string) Option {
	return func(c *KubeClient) {
		c.userAgent = ua
	}
}

// NewKubeClient creates a client reading credentials from the kubeconfig at path.
func NewKubeClient(path string, opts ...Option) *KubeClient {
	c := &KubeClient{
		path:       path,
		newDynamic: DefaultDynamicFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetPath points the client at another kubeconfig file. Streams already open
// are unaffected; the next connect uses the new file.
func (c *KubeClient) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// Path returns the kubeconfig file the client reads.
func (c *KubeClient) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// RESTConfig builds the REST config for a single context of the kubeconfig.
func (c *KubeClient) RESTConfig(kctx kubeconfig.Context) (*rest.Config, error) {
	path := c.Path()
	if path == "" {
		return nil, fmt.Errorf("no kubeconfig path configured")
	}

	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: path}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kctx.Name}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build REST config for context %s: %w", kctx.Name, err)
	}
	if c.userAgent != "" {
		cfg.UserAgent = c.userAgent
	}
	return cfg, nil
}

// WatchNamespaces implements Client.
func (c *KubeClient) WatchNamespaces(ctx context.Context, kctx kubeconfig.Context) (watch.Interface, error) {
	cfg, err := c.RESTConfig(kctx)
	if err != nil {
		return nil, err
	}

	dc, err := c.newDynamic(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client for context %s: %w", kctx.Name, err)
	}

	w, err := dc.Resource(NamespacesGVR).Watch(ctx, metav1.ListOptions{AllowWatchBookmarks: true})
	if err != nil {
		return nil, fmt.Errorf("failed to watch namespaces in context %s: %w", kctx.Name, err)
	}

	logging.Debug("Cluster", "Opened namespace watch for context %s (%s)", kctx.Name, cfg.Host)
	return w, nil
}
