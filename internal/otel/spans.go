package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for Friday spans.
var (
	AttrSessionID = attribute.Key("friday.session.id")
	AttrTaskID    = attribute.Key("friday.task.id")
	AttrTaskTitle = attribute.Key("friday.task.title")
	AttrToolName  = attribute.Key("friday.tool.name")
	AttrFactKey   = attribute.Key("friday.fact.key")
	AttrSchedule  = attribute.Key("friday.task.schedule")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
