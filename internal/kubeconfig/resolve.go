package kubeconfig

import (
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/tools/clientcmd"
)

// Source records where a resolved path came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourceDefault  Source = "default"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Path   string
	Source Source
	// Ignored lists $KUBECONFIG entries after the first one. Only the first
	// entry is watched; callers surface a warning when this is non-empty.
	Ignored []string
}

// Overridable in tests.
var (
	getenv              = os.Getenv
	recommendedHomeFile = func() string { return clientcmd.RecommendedHomeFile }
)

// Resolve determines which credentials file to watch.
func Resolve(explicit string) Resolution {
	if explicit != "" {
		return Resolution{Path: explicit, Source: SourceExplicit}
	}

	var entries []string
	for _, p := range filepath.SplitList(getenv(clientcmd.RecommendedConfigPathEnvVar)) {
		if p = strings.TrimSpace(p); p != "" {
			entries = append(entries, p)
		}
	}
	if len(entries) > 0 {
		return Resolution{Path: entries[0], Source: SourceEnv, Ignored: entries[1:]}
	}

	return Resolution{Path: recommendedHomeFile(), Source: SourceDefault}
}
