package otel

import (
	"context"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "atomref"

func RecordSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if ctx == nil || name == "" {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// StartStressSpan opens the span wrapping one stress run.
func StartStressSpan(ctx context.Context, refName string, workers int) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return otelapi.Tracer(tracerName).Start(ctx, spanNameStressRun, trace.WithAttributes(
		attribute.String(attributeRefName, refName),
		attribute.Int(attributeStressWorkers, workers),
	))
}
