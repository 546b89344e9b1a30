// Package logging provides the subsystem logger used across clusterwatch.
//
// It is a thin layer over log/slog: every entry carries a "subsystem" attribute
// so output from the reconciler, the watch sessions and the file watcher can be
// filtered independently.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.BridgeKlog()
//
//	logging.Info("Reconciler", "Reconciled %d contexts", n)
//	logging.Debug("Session", "Stream for %s ended, restarting", name)
//	logging.Warn("FileWatch", "Falling back to polling for %s", path)
//	logging.Error("Cluster", err, "Failed to open namespace watch")
//
// # Output formats
//
// InitForCLIWithFormat selects between the slog text handler (default) and the
// JSON handler, which is easier to ship to log aggregation systems.
//
// # client-go integration
//
// client-go logs through klog. BridgeKlog installs a logr sink backed by the
// same slog handler, so reflector and transport messages land in the same
// stream with subsystem "client-go".
package logging
