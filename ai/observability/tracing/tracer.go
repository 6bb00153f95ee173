// Package tracing provides OpenTelemetry spans for the routing pipeline.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "myassistant"

// StartRouteSpan starts the span covering one routing request.
func StartRouteSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "route",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

// StartClassifySpan starts the span for the external classification call.
func StartClassifySpan(ctx context.Context, provider string, contextTurns int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("classify.context_turns", contextTurns),
		),
	)
}

// StartGenerateSpan starts the span for a response generation call.
func StartGenerateSpan(ctx context.Context, provider string, promptLen int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("generate.prompt_len", promptLen),
		),
	)
}

// RecordDecision annotates a route span with the final decision.
func RecordDecision(span trace.Span, specialistID, source, state string, confidence float64, switched bool) {
	span.SetAttributes(
		attribute.String("route.specialist", specialistID),
		attribute.String("route.source", source),
		attribute.String("route.state", state),
		attribute.Float64("route.confidence", confidence),
		attribute.Bool("route.switched", switched),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
