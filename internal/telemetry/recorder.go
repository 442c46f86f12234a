package telemetry

import (
	"context"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/internal/types"
)

const (
	InvocationSpanName = "main.handler"

	AttrIsSuccessful = attribute.Key("is.successful")
	AttrBucketID     = attribute.Key("bucket.id")
	AttrKeyName      = attribute.Key("key.name")
	AttrRequestID    = attribute.Key("aws.request.id")
	AttrErrorKind    = attribute.Key("error.kind")
	AttrQueueURL     = attribute.Key("aws.queue_url")
)

// Outcome summarises one stage invocation.
type Outcome struct {
	Success   bool
	Bucket    string
	Key       string
	RequestID string

	ErrorKind string
	Err       error

	Attributes []attribute.KeyValue
}

// Recorder opens the spans of one stage and enriches them with the outcome.
type Recorder struct {
	tracer trace.Tracer
	stage  types.Stage
}

func NewRecorder(tp trace.TracerProvider, serviceName string, stage types.Stage) *Recorder {
	return &Recorder{tracer: tp.Tracer(serviceName), stage: stage}
}

func (r *Recorder) Stage() types.Stage {
	return r.stage
}

// EventName is the span event carrying the outcome, e.g. LambdaCheckEvent.
func (r *Recorder) EventName() string {
	return "Lambda" + r.stage.String() + "Event"
}

// ErrorDescription is the span status description on failure.
func (r *Recorder) ErrorDescription() string {
	return r.stage.String() + " Lambda is failed."
}

func (r *Recorder) StartInvocation(ctx context.Context, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, InvocationSpanName,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...))
}

// StartCall opens a child span around one collaborator call.
func (r *Recorder) StartCall(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...))
}

// EndCall closes a collaborator span, marking it failed when err is set.
func (r *Recorder) EndCall(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, r.ErrorDescription())
		span.RecordError(err)
	}
	span.End()
}

// Record adds the outcome event to span and, on failure, the error status and
// exception attributes.
func (r *Recorder) Record(span trace.Span, outcome Outcome) {
	if !outcome.Success {
		span.SetStatus(codes.Error, r.ErrorDescription())
		if outcome.Err != nil {
			span.SetAttributes(
				semconv.ExceptionTypeKey.String(ExceptionType(outcome.Err)),
				semconv.ExceptionMessageKey.String(outcome.Err.Error()),
				semconv.ExceptionStacktraceKey.String(fmt.Sprintf("%+v", outcome.Err)),
			)
		}
		if outcome.ErrorKind != "" {
			span.SetAttributes(AttrErrorKind.String(outcome.ErrorKind))
		}
	}

	attrs := []attribute.KeyValue{
		AttrIsSuccessful.Bool(outcome.Success),
		AttrBucketID.String(outcome.Bucket),
		AttrKeyName.String(outcome.Key),
		AttrRequestID.String(outcome.RequestID),
	}
	attrs = append(attrs, outcome.Attributes...)
	span.AddEvent(r.EventName(), trace.WithAttributes(attrs...))
}

// ExceptionType names the failure: the AWS error code when the root cause is
// an API error, the Go type of the root cause otherwise.
func ExceptionType(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return fmt.Sprintf("%T", rootCause(err))
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return errors.Cause(err)
		}
		err = next
	}
}
