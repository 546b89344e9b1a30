// Package cluster opens namespace watch streams against Kubernetes clusters.
//
// A Client turns a kubeconfig context into a watch.Interface. KubeClient is
// the production implementation: it builds a REST config for the requested
// context from the kubeconfig file, creates a dynamic client and watches the
// core namespaces resource with bookmarks enabled.
//
// Decode maps raw watch events to the small set of event types the session
// layer forwards. Error events terminate a stream; undecodable objects are
// reported with ErrDecode so the caller can log and skip them.
package cluster
