package kubeconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/tools/clientcmd"

	"clusterwatch/pkg/logging"
)

// document mirrors the parts of a kubeconfig we need. clientcmd's api.Config
// stores contexts in a map, which loses file order, so the list is decoded
// separately.
type document struct {
	CurrentContext string `yaml:"current-context"`
	Contexts       []struct {
		Name    string `yaml:"name"`
		Context struct {
			Cluster   string `yaml:"cluster"`
			User      string `yaml:"user"`
			Namespace string `yaml:"namespace"`
		} `yaml:"context"`
	} `yaml:"contexts"`
}

// Read parses the credentials file at path. It performs no I/O other than
// reading that one file.
func Read(path string) Config {
	if path == "" {
		return Invalid(path, "no kubeconfig path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Debug("Kubeconfig", "Failed to read %s: %v", path, err)
		return Invalid(path, fmt.Sprintf("failed to read kubeconfig: %v", err))
	}

	// Reject anything client-go itself would reject, so a file we accept is
	// also one the cluster client can build a REST config from.
	if _, err := clientcmd.Load(data); err != nil {
		logging.Debug("Kubeconfig", "Failed to load %s: %v", path, err)
		return Invalid(path, fmt.Sprintf("failed to parse kubeconfig: %v", err))
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Invalid(path, fmt.Sprintf("failed to parse kubeconfig: %v", err))
	}

	// clientcmd.Load already rejects duplicate names; unnamed entries are dropped.
	seen := make(map[string]bool, len(doc.Contexts))
	contexts := make([]Context, 0, len(doc.Contexts))
	for _, c := range doc.Contexts {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		contexts = append(contexts, Context{
			Name:      c.Name,
			Cluster:   c.Context.Cluster,
			User:      c.Context.User,
			Namespace: c.Context.Namespace,
		})
	}

	if len(contexts) == 0 {
		cfg := Invalid(path, "no contexts found in kubeconfig")
		cfg.CurrentContext = doc.CurrentContext
		return cfg
	}

	return Config{
		Path:           path,
		CurrentContext: doc.CurrentContext,
		Contexts:       contexts,
		Valid:          true,
	}
}
