package reconciler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
)

// MeterName is the instrumentation scope of the engine's instruments.
const MeterName = "clusterwatch/reconciler"

// Metrics records engine activity as OpenTelemetry instruments. It also
// serves as the session.Observer of every session the manager creates.
type Metrics struct {
	passes          metric.Int64Counter
	sessionsStarted metric.Int64Counter
	sessionsClosed  metric.Int64Counter
	sessionRestarts metric.Int64Counter
	liveSessions    metric.Int64UpDownCounter
	namespaceEvents metric.Int64Counter
	decodeErrors    metric.Int64Counter
	warnings        metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.passes, err = meter.Int64Counter("clusterwatch_reconcile_passes_total",
		metric.WithDescription("Reconciliation passes by trigger.")); err != nil {
		return nil, err
	}
	if m.sessionsStarted, err = meter.Int64Counter("clusterwatch_sessions_started_total",
		metric.WithDescription("Watch sessions started by feed.")); err != nil {
		return nil, err
	}
	if m.sessionsClosed, err = meter.Int64Counter("clusterwatch_sessions_cancelled_total",
		metric.WithDescription("Watch sessions cancelled by feed.")); err != nil {
		return nil, err
	}
	if m.sessionRestarts, err = meter.Int64Counter("clusterwatch_session_restarts_total",
		metric.WithDescription("Stream reconnects by feed.")); err != nil {
		return nil, err
	}
	if m.liveSessions, err = meter.Int64UpDownCounter("clusterwatch_sessions",
		metric.WithDescription("Watch sessions currently running by feed.")); err != nil {
		return nil, err
	}
	if m.namespaceEvents, err = meter.Int64Counter("clusterwatch_namespace_events_total",
		metric.WithDescription("Namespace events forwarded by feed and type.")); err != nil {
		return nil, err
	}
	if m.decodeErrors, err = meter.Int64Counter("clusterwatch_decode_errors_total",
		metric.WithDescription("Watch events that could not be decoded.")); err != nil {
		return nil, err
	}
	if m.warnings, err = meter.Int64Counter("clusterwatch_warnings_total",
		metric.WithDescription("Warnings published by reason.")); err != nil {
		return nil, err
	}

	return &m, nil
}

func feedAttr(feed events.Feed) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("feed", string(feed)))
}

// RecordPass counts one pass for each merged trigger.
func (m *Metrics) RecordPass(triggers []Trigger) {
	if m == nil {
		return
	}
	for _, t := range triggers {
		m.passes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("trigger", string(t))))
	}
}

// RecordWarning counts a published warning.
func (m *Metrics) RecordWarning(reason events.Reason) {
	if m == nil {
		return
	}
	m.warnings.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *Metrics) SessionStarted(feed events.Feed) {
	m.sessionsStarted.Add(context.Background(), 1, feedAttr(feed))
	m.liveSessions.Add(context.Background(), 1, feedAttr(feed))
}

func (m *Metrics) SessionClosed(feed events.Feed) {
	m.sessionsClosed.Add(context.Background(), 1, feedAttr(feed))
	m.liveSessions.Add(context.Background(), -1, feedAttr(feed))
}

func (m *Metrics) SessionRestarted(feed events.Feed) {
	m.sessionRestarts.Add(context.Background(), 1, feedAttr(feed))
}

func (m *Metrics) NamespaceEvent(feed events.Feed, typ cluster.EventType) {
	m.namespaceEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("feed", string(feed)),
		attribute.String("type", string(typ)),
	))
}

func (m *Metrics) DecodeError(feed events.Feed) {
	m.decodeErrors.Add(context.Background(), 1, feedAttr(feed))
}
