package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider creates an OTLP/gRPC tracer provider and installs it as
// the global provider.
func NewTracerProvider(ctx context.Context, serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Shutdown flushes the batcher; CLI runs must call it before exit.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// GateTracer creates the spans of a gate evaluation.
type GateTracer struct {
	tracer trace.Tracer
}

// NewGateTracer uses the global provider, which is a no-op unless
// NewTracerProvider ran.
func NewGateTracer(serviceName string) *GateTracer {
	return &GateTracer{tracer: otel.Tracer(serviceName)}
}

// NewGateTracerFromProvider is used by tests with an in-memory provider.
func NewGateTracerFromProvider(tp trace.TracerProvider, serviceName string) *GateTracer {
	return &GateTracer{tracer: tp.Tracer(serviceName)}
}

// StartEvaluationSpan starts the root span of one evaluation.
func (gt *GateTracer) StartEvaluationSpan(ctx context.Context, evaluationID, gate, query string) (context.Context, trace.Span) {
	return gt.tracer.Start(ctx, "gate.evaluate",
		trace.WithAttributes(
			attribute.String("gate.evaluation_id", evaluationID),
			attribute.String("gate.name", gate),
			attribute.String("gate.query", query),
		),
	)
}

// StartCountRequestSpan starts the span around the HTTP count request.
func (gt *GateTracer) StartCountRequestSpan(ctx context.Context, indexes string) (context.Context, trace.Span) {
	return gt.tracer.Start(ctx, "gate.count_request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("search.indexes", indexes),
		),
	)
}

// RecordVerdict records the evaluated numbers on a span.
func (gt *GateTracer) RecordVerdict(span trace.Span, count, threshold int64, comparison string, exceeded bool) {
	span.SetAttributes(
		attribute.Int64("gate.count", count),
		attribute.Int64("gate.threshold", threshold),
		attribute.String("gate.comparison", comparison),
		attribute.Bool("gate.exceeded", exceeded),
	)
}

// RecordError records an error on a span
func (gt *GateTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
