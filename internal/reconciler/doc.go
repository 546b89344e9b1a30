// Package reconciler keeps namespace watch sessions consistent with a
// kubeconfig file.
//
// # Overview
//
// The Manager re-reads the kubeconfig and converges the running sessions on
// its contexts whenever something may have changed. Two sets of sessions can
// run side by side:
//
//   - Fleet: one session per context, held in a registry and reconciled by
//     name. Contexts that disappear are cancelled, new ones are started and
//     the rest keep running untouched.
//   - Focused: a single session following the current context. It is
//     rebuilt when that context changes, when the file is replaced and when
//     the user switches context.
//
// # Triggers
//
// A pass is queued by:
//
//   - FileWatch notifications (Changed / Removed)
//   - the periodic timer (one hour by default)
//   - SetCurrentContext, SetKubeconfigPath and Trigger
//
// All triggers go through one work queue with a single key and a single
// worker. A trigger arriving while a pass runs is merged into one follow-up
// pass, so two passes never interleave.
//
// After a Removed notification the file is not read again until a Changed
// notification arrives; the config is reported invalid and every fleet
// session is cancelled.
//
// # Usage
//
//	manager, err := reconciler.NewManager(reconciler.ManagerConfig{
//	    KubeconfigPath: path,
//	    Fleet:          true,
//	    Client:         cluster.NewKubeClient(path),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
//
//	for ev := range manager.Events() {
//	    ...
//	}
//
// # Metrics
//
// Metrics exposes pass, session and event counters as OpenTelemetry
// instruments; the command layer exports them through Prometheus.
package reconciler
