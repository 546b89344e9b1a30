package config

import (
	"strings"
	"time"
)

// Viper keys.
const (
	KeyKubeconfig        = "kubeconfig"
	KeyModeFleet         = "mode.fleet"
	KeyModeFocused       = "mode.focused"
	KeyReconcileInterval = "reconcile.interval"
	KeyFileWatchInterval = "filewatch.interval"
	KeyFileWatchPoll     = "filewatch.poll"
	KeyBackoffInitial    = "backoff.initial"
	KeyBackoffMax        = "backoff.max"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyMetricsAddress    = "metrics.address"
	KeyEventsBuffer      = "events.buffer"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and the description
// shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// WatchOptions are the settings of the watch command.
var WatchOptions = []Option{
	{Key: KeyKubeconfig, Flag: toFlag(KeyKubeconfig), Default: "", Description: "Kubeconfig file to follow (default $KUBECONFIG, then ~/.kube/config)"},
	{Key: KeyModeFleet, Flag: toFlag(KeyModeFleet), Default: true, Description: "Watch every context in the kubeconfig"},
	{Key: KeyModeFocused, Flag: toFlag(KeyModeFocused), Default: false, Description: "Watch the current context"},
	{Key: KeyReconcileInterval, Flag: toFlag(KeyReconcileInterval), Default: time.Hour, Description: "Interval between periodic reconcile passes"},
	{Key: KeyFileWatchInterval, Flag: toFlag(KeyFileWatchInterval), Default: time.Second, Description: "Debounce and poll interval of the kubeconfig file watch"},
	{Key: KeyFileWatchPoll, Flag: toFlag(KeyFileWatchPoll), Default: false, Description: "Poll the kubeconfig instead of using filesystem notifications"},
	{Key: KeyBackoffInitial, Flag: toFlag(KeyBackoffInitial), Default: time.Second, Description: "First delay before reopening a failed stream"},
	{Key: KeyBackoffMax, Flag: toFlag(KeyBackoffMax), Default: 30 * time.Second, Description: "Upper bound of the reopen delay"},
	{Key: KeyLogLevel, Flag: toFlag(KeyLogLevel), Default: "info", Description: "Log level (debug, info, warn, error)"},
	{Key: KeyLogFormat, Flag: toFlag(KeyLogFormat), Default: "text", Description: "Log format (text, json)"},
	{Key: KeyMetricsAddress, Flag: toFlag(KeyMetricsAddress), Default: "", Description: "Address to serve /metrics on (empty disables)"},
	{Key: KeyEventsBuffer, Flag: toFlag(KeyEventsBuffer), Default: 256, Description: "Capacity of the event buffer"},
}

// ContextsOptions are the settings of the contexts command.
var ContextsOptions = []Option{
	{Key: KeyKubeconfig, Flag: toFlag(KeyKubeconfig), Default: "", Description: "Kubeconfig file to read (default $KUBECONFIG, then ~/.kube/config)"},
	{Key: KeyLogLevel, Flag: toFlag(KeyLogLevel), Default: "info", Description: "Log level (debug, info, warn, error)"},
}

// toFlag converts a viper key like "reconcile.interval" into a CLI flag
// like "reconcile-interval".
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "mode-")
	return flag
}
