// Package events is the outward-facing surface of the watch engine.
//
// Every observable change is published as an Event:
//
//   - ConfigReplaced: a fresh kubeconfig snapshot replaced the previous one
//   - NamespaceAdded / NamespaceRemoved: a watch stream reported a namespace
//   - Warning: a non-fatal condition worth showing to the user
//
// Producers hand events to a Publisher through the Sink interface. The
// Publisher funnels them through a single buffered channel into Events(), so
// the order in which one producer sends is the order the host receives.
//
// Warning messages are rendered from named templates:
//
//	engine := events.NewMessageTemplateEngine()
//	msg := engine.Render(events.ReasonMultipleKubeconfigs, events.EventData{
//		Path:    "/home/me/.kube/config",
//		Ignored: []string{"/etc/kube/other"},
//	})
package events
