package changelog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/heartmarshall/persona-registry/internal/service/changelog"

// telemetry holds the engine's tracer and instruments. Instruments that fail
// to register are left nil and skipped.
type telemetry struct {
	tracer         trace.Tracer
	submitTotal    metric.Int64Counter
	resolveTotal   metric.Int64Counter
	submitDuration metric.Float64Histogram
}

// newTelemetry builds instruments from the given providers, falling back to
// the global ones.
func newTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) *telemetry {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	meter := mp.Meter(instrumentationName)
	t := &telemetry{tracer: tp.Tracer(instrumentationName)}

	t.submitTotal, _ = meter.Int64Counter(
		"changelog_submit_total",
		metric.WithDescription("Total number of submitted persona changes by outcome"),
	)
	t.resolveTotal, _ = meter.Int64Counter(
		"changelog_resolve_total",
		metric.WithDescription("Total number of review decisions by result"),
	)
	t.submitDuration, _ = meter.Float64Histogram(
		"changelog_submit_duration_seconds",
		metric.WithDescription("Duration of Submit calls"),
		metric.WithUnit("s"),
	)
	return t
}

func (t *telemetry) startSpan(ctx context.Context, name string, personaID uuid.UUID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("persona.id", personaID.String())),
	)
}

func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *telemetry) recordSubmit(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if t.submitTotal != nil {
		t.submitTotal.Add(ctx, 1, attrs)
	}
	if t.submitDuration != nil {
		t.submitDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (t *telemetry) recordResolve(ctx context.Context, result string) {
	if t.resolveTotal != nil {
		t.resolveTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
