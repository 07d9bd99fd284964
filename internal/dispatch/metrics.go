package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swasthyasetu/swasthyasetu/internal/timeline"
)

const meterName = "github.com/swasthyasetu/swasthyasetu/internal/dispatch"

// Metrics holds the OpenTelemetry instruments for the dispatch engine.
type Metrics struct {
	sessionsStarted metric.Int64Counter
	sessionsEnded   metric.Int64Counter
	routeLookups    metric.Int64Counter
	routeDuration   metric.Float64Histogram
	positions       metric.Int64Counter
}

// NewMetrics creates the dispatch instruments on meter, or on the global
// meter provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	sessionsStarted, err := meter.Int64Counter(
		"dispatch.sessions.started",
		metric.WithDescription("Emergency sessions started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	sessionsEnded, err := meter.Int64Counter(
		"dispatch.sessions.ended",
		metric.WithDescription("Emergency sessions ended, by reason"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	routeLookups, err := meter.Int64Counter(
		"dispatch.route.lookups",
		metric.WithDescription("Route lookups, by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	routeDuration, err := meter.Float64Histogram(
		"dispatch.route.duration",
		metric.WithDescription("Duration of route lookups in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	positions, err := meter.Int64Counter(
		"dispatch.ambulance.positions",
		metric.WithDescription("Ambulance positions emitted by the tracker"),
		metric.WithUnit("{position}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsStarted: sessionsStarted,
		sessionsEnded:   sessionsEnded,
		routeLookups:    routeLookups,
		routeDuration:   routeDuration,
		positions:       positions,
	}, nil
}

// SessionStarted records a new session.
func (m *Metrics) SessionStarted(lowBalance bool) {
	m.sessionsStarted.Add(context.TODO(), 1,
		metric.WithAttributes(attribute.Bool("low_balance", lowBalance)))
}

// SessionEnded records how a session ended.
func (m *Metrics) SessionEnded(reason timeline.EndReason) {
	m.sessionsEnded.Add(context.TODO(), 1,
		metric.WithAttributes(attribute.String("reason", string(reason))))
}

// RouteLookup records a route lookup and its outcome.
func (m *Metrics) RouteLookup(outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.routeLookups.Add(context.TODO(), 1, attrs)
	m.routeDuration.Record(context.TODO(), d.Seconds(), attrs)
}

// AmbulancePosition records one tracker tick.
func (m *Metrics) AmbulancePosition() {
	m.positions.Add(context.TODO(), 1)
}
