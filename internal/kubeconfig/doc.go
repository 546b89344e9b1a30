// Package kubeconfig reads credentials files into the flat view the watch
// engine needs: an ordered list of named contexts and the current context.
//
// Read never fails. Anything that prevents a usable result (missing file,
// malformed YAML, a document client-go rejects, zero contexts) produces a
// Config with Valid set to false and Error describing why, so callers can
// fail safe to "no watches" without special error paths.
//
// Resolve picks the credentials file the same way kubectl does for a single
// file: explicit path, then the first entry of $KUBECONFIG, then
// ~/.kube/config.
package kubeconfig
