// Package otel provides span helpers for sync runs.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by sync spans.
const (
	AttrSyncMode    = attribute.Key("sync.mode")
	AttrRunID       = attribute.Key("sync.run_id")
	AttrDryRun      = attribute.Key("sync.dry_run")
	AttrObjectType  = attribute.Key("sync.object_type")
	AttrOutcome     = attribute.Key("sync.outcome")
	AttrResultCount = attribute.Key("result.count")
)

// StartSpan starts a span on tracer. A nil tracer yields the span already in ctx,
// which is a no-op span when tracing is off.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// StartStage starts the span of one stage of a run over the given object types.
func StartStage(ctx context.Context, tracer trace.Tracer, name string, objectTypes ...string) (context.Context, trace.Span) {
	return StartSpan(ctx, tracer, name, trace.WithAttributes(AttrObjectType.StringSlice(objectTypes)))
}

// EndStage records the number of objects a stage produced and its error, then ends the span.
func EndStage(span trace.Span, count int, err error) {
	span.SetAttributes(AttrResultCount.Int(count))
	RecordError(span, err)
	span.End()
}

// RecordError marks span as failed. The status description stays generic so request
// URLs and connection strings only end up in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
