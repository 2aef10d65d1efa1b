// Package observe provides the observability primitives shared by sessions,
// validators and the ops listener: OpenTelemetry metrics, tracing, a
// trace-aware slog logger and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus through the exporter bridge set up by [StartTelemetry]. Tests
// should build their own instance with [NewMetrics] and a
// [sdkmetric.ManualReader] instead of using [DefaultMetrics].
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all metrics of this module.
const meterName = "github.com/Spotfunnel/voiceOS-sub001"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// Transitions counts state machine transitions. Attributes: kind, event,
	// from, to.
	Transitions metric.Int64Counter

	// Captures counts parsed utterances. Attributes: kind, outcome
	// ("accepted" or "low_confidence").
	Captures metric.Int64Counter

	// Repairs counts correction attempts. Attributes: kind, outcome
	// ("applied", "ambiguous" or "rejected").
	Repairs metric.Int64Counter

	// Outcomes counts objectives reaching a terminal state. Attributes: kind,
	// state, critical.
	Outcomes metric.Int64Counter

	// ValidationDuration tracks validator latency. Attributes: validator.
	ValidationDuration metric.Float64Histogram

	// ValidatorErrors counts failed validator calls. Attributes: validator.
	ValidatorErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// breaker, to.
	BreakerTransitions metric.Int64Counter

	// ActiveSessions tracks live call sessions.
	ActiveSessions metric.Int64UpDownCounter

	// SessionDuration tracks how long calls spend capturing. Attributes:
	// outcome.
	SessionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks ops listener latency. Attributes: method,
	// path (an ops route or "other"), status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds, sized for
// validator round trips.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// sessionBuckets are histogram bucket boundaries in seconds for whole calls.
var sessionBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600,
}

// NewMetrics creates a [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transitions, err = m.Int64Counter("voiceos.objective.transitions",
		metric.WithDescription("State machine transitions by kind, event and states."),
	); err != nil {
		return nil, err
	}
	if met.Captures, err = m.Int64Counter("voiceos.capture.parses",
		metric.WithDescription("Parsed utterances by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Repairs, err = m.Int64Counter("voiceos.capture.repairs",
		metric.WithDescription("Correction attempts by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Outcomes, err = m.Int64Counter("voiceos.objective.outcomes",
		metric.WithDescription("Objectives reaching a terminal state."),
	); err != nil {
		return nil, err
	}
	if met.ValidationDuration, err = m.Float64Histogram("voiceos.validation.duration",
		metric.WithDescription("Latency of validator calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ValidatorErrors, err = m.Int64Counter("voiceos.validation.errors",
		metric.WithDescription("Failed validator calls by validator."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voiceos.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voiceos.active_sessions",
		metric.WithDescription("Number of live call sessions."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("voiceos.session.duration",
		metric.WithDescription("Duration of call sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voiceos.http.request.duration",
		metric.WithDescription("Ops listener request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTransition counts one state machine transition.
func (m *Metrics) RecordTransition(ctx context.Context, kind, event, from, to string) {
	m.Transitions.Add(ctx, 1, metric.WithAttributes(
		Attr("kind", kind), Attr("event", event), Attr("from", from), Attr("to", to),
	))
}

// RecordCapture counts one parsed utterance.
func (m *Metrics) RecordCapture(ctx context.Context, kind string, lowConfidence bool) {
	outcome := "accepted"
	if lowConfidence {
		outcome = "low_confidence"
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind), Attr("outcome", outcome)))
}

// RecordRepair counts one correction attempt.
func (m *Metrics) RecordRepair(ctx context.Context, kind, outcome string) {
	m.Repairs.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind), Attr("outcome", outcome)))
}

// RecordOutcome counts one objective reaching a terminal state.
func (m *Metrics) RecordOutcome(ctx context.Context, kind, state string, critical bool) {
	m.Outcomes.Add(ctx, 1, metric.WithAttributes(
		Attr("kind", kind), Attr("state", state), Attr("critical", strconv.FormatBool(critical)),
	))
}

// RecordValidation records the latency of one validator call and counts it as
// an error when err is non-nil.
func (m *Metrics) RecordValidation(ctx context.Context, validator string, d time.Duration, err error) {
	attrs := metric.WithAttributes(Attr("validator", validator))
	m.ValidationDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.ValidatorErrors.Add(ctx, 1, attrs)
	}
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("breaker", breaker), Attr("to", to)))
}
