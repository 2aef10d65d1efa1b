package observe

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ServiceName is the service.name every voiceos process reports.
const ServiceName = "voiceos"

// TelemetryConfig describes the capture deployment being instrumented.
type TelemetryConfig struct {
	// ServiceVersion is the build version.
	ServiceVersion string

	// Locale is the BCP 47 tag the capture rules run under, e.g. "en-AU".
	// It is attached to the resource so dashboards can split by locale.
	Locale string

	// ValidatorMode is "rules" or "llm".
	ValidatorMode string

	// Registry receives the capture metrics. When nil the process-wide
	// prometheus.DefaultRegisterer is used.
	Registry *prometheus.Registry

	// TraceExporter receives session and validator spans. When nil, spans
	// are recorded for correlation IDs but not exported.
	TraceExporter sdktrace.SpanExporter
}

// Telemetry is the OpenTelemetry wiring of one voiceos process: the metric
// instruments sessions and validators record into, and the Prometheus
// endpoint the ops listener serves them from.
type Telemetry struct {
	// Metrics are bound to this process's meter provider.
	Metrics *Metrics

	gatherer prometheus.Gatherer
	shutdown []func(context.Context) error
}

// StartTelemetry builds the meter and tracer providers for a voiceos
// process and installs them as the OTel globals, so [Tracer] and
// [DefaultMetrics] see them too. Capture metrics leave through the
// Prometheus exporter bridge and are served by [Telemetry.Handler].
func StartTelemetry(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Locale != "" {
		attrs = append(attrs, attribute.String("voiceos.locale", cfg.Locale))
	}
	if cfg.ValidatorMode != "" {
		attrs = append(attrs, attribute.String("voiceos.validator.mode", cfg.ValidatorMode))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, err
	}

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		reg, gatherer = cfg.Registry, cfg.Registry
	}
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	m, err := NewMetrics(mp)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(ctx), tp.Shutdown(ctx))
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	return &Telemetry{
		Metrics:  m,
		gatherer: gatherer,
		shutdown: []func(context.Context) error{mp.Shutdown, tp.Shutdown},
	}, nil
}

// Handler serves the capture metrics in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
