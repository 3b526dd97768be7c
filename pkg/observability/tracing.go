package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// TracerName is the instrumentation scope of docgen spans
const TracerName = "github.com/ajitpratap0/docgen"

// Span names
const (
	SpanRun   = "docgen.run"
	SpanBatch = "docgen.batch"
)

// Span attribute keys
const (
	AttrDestination = attribute.Key("docgen.destination")
	AttrRequested   = attribute.Key("docgen.records.requested")
	AttrCreated     = attribute.Key("docgen.records.created")
	AttrBatchSize   = attribute.Key("docgen.batch.size")
	AttrBatchIndex  = attribute.Key("docgen.batch.index")
	AttrErrorType   = attribute.Key("docgen.error.type")
)

// StartRun opens the span covering one generation run
func StartRun(ctx context.Context, tracer trace.Tracer, destination string, total, batchSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanRun, trace.WithAttributes(
		AttrDestination.String(destination),
		AttrRequested.Int(total),
		AttrBatchSize.Int(batchSize),
	))
}

// StartBatch opens the span covering the build and persist of one batch
func StartBatch(ctx context.Context, tracer trace.Tracer, index, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanBatch, trace.WithAttributes(
		AttrBatchIndex.Int(index),
		AttrBatchSize.Int(size),
	))
}

// End records err on span and ends it
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if t := errors.TypeOf(err); t != "" {
			span.SetAttributes(AttrErrorType.String(string(t)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
