package events

import (
	"time"

	"clusterwatch/internal/kubeconfig"
)

// Kind is the type of an engine event.
type Kind string

const (
	KindConfigReplaced   Kind = "ConfigReplaced"
	KindNamespaceAdded   Kind = "NamespaceAdded"
	KindNamespaceRemoved Kind = "NamespaceRemoved"
	KindWarning          Kind = "Warning"
)

// Feed tells the fleet and focused consumers apart.
type Feed string

const (
	// FeedFleet carries events from the per-context sessions of fleet mode.
	FeedFleet Feed = "fleet"

	// FeedFocused carries events from the single current-context session.
	FeedFocused Feed = "focused"
)

// Reason identifies the condition behind a Warning.
type Reason string

const (
	// ReasonMultipleKubeconfigs: $KUBECONFIG listed more than one file.
	ReasonMultipleKubeconfigs Reason = "MultipleKubeconfigs"

	// ReasonContextFallback: current-context is unset or unknown, the first
	// context is used instead.
	ReasonContextFallback Reason = "ContextFallback"

	// ReasonContextRedefined: a context kept its name but points elsewhere.
	ReasonContextRedefined Reason = "ContextRedefined"

	// ReasonConfigInvalid: the kubeconfig could not be used.
	ReasonConfigInvalid Reason = "ConfigInvalid"

	// ReasonFileWatchFailed: the kubeconfig file cannot be watched.
	ReasonFileWatchFailed Reason = "FileWatchFailed"
)

// Event is a single engine event.
type Event struct {
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`

	// Feed is set for namespace events.
	Feed Feed `json:"feed,omitempty"`

	// Context and Namespace are set for namespace events.
	Context   string `json:"context,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	// Generation of the session that produced a namespace event.
	Generation uint64 `json:"generation,omitempty"`

	// Config is set for ConfigReplaced.
	Config *kubeconfig.Config `json:"config,omitempty"`

	// Reason and Message are set for Warning.
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConfigReplaced builds a ConfigReplaced event.
func ConfigReplaced(cfg kubeconfig.Config) Event {
	return Event{Kind: KindConfigReplaced, Config: &cfg}
}

// NamespaceAdded builds a NamespaceAdded event.
func NamespaceAdded(feed Feed, context, namespace string) Event {
	return Event{Kind: KindNamespaceAdded, Feed: feed, Context: context, Namespace: namespace}
}

// NamespaceRemoved builds a NamespaceRemoved event.
func NamespaceRemoved(feed Feed, context, namespace string) Event {
	return Event{Kind: KindNamespaceRemoved, Feed: feed, Context: context, Namespace: namespace}
}

// Warning builds a Warning event with an already rendered message.
func Warning(reason Reason, message string) Event {
	return Event{Kind: KindWarning, Reason: reason, Message: message}
}

// EventData holds the values warning templates can reference.
type EventData struct {
	// Path is the kubeconfig file in use.
	Path string

	// Ignored lists kubeconfig files that were skipped.
	Ignored []string

	// Context is the context the warning is about.
	Context string

	// Previous and Current describe a context before and after a change.
	Previous kubeconfig.Context
	Current  kubeconfig.Context

	// Requested is the context name that was asked for.
	Requested string

	// Error contains error information for failure warnings.
	Error string
}
