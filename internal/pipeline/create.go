package pipeline

import (
	"context"
	"net/http"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

// CreateStage writes a fresh custom object into the input bucket.
type CreateStage struct {
	stage
}

func NewCreateStage(cfg *config.Config, store BlobStore, injector chaos.Injector, recorder *telemetry.Recorder) *CreateStage {
	return &CreateStage{stage: newStage(cfg, store, injector, recorder)}
}

// Handle always answers with a response; storage failures become a 500 whose
// body is the error message.
func (s *CreateStage) Handle(ctx context.Context, req types.Request) types.Response {
	if req.RequestID != "" {
		ctx = telemetry.WithRequestID(ctx, req.RequestID)
	}
	ctx, requestID := telemetry.EnsureRequestID(ctx)

	ctx, span := s.recorder.StartInvocation(ctx, trace.SpanKindServer,
		semconv.FaaSTriggerHTTP,
		semconv.FaaSInvocationID(requestID),
		semconv.HTTPRequestMethodKey.String(req.Method),
		semconv.URLPath(req.Path),
		semconv.UserAgentOriginal(req.Headers["User-Agent"]),
	)
	defer span.End()

	t := &target{Bucket: s.cfg.InputBucketName, RequestID: requestID}
	var body []byte
	outcome := s.guard(span, t, func() error {
		var err error
		body, err = encodeObject(types.NewCustomObject())
		if err != nil {
			return err
		}

		t.Bucket, _ = chaos.Bucket(s.chaos, chaos.DefaultRate, s.cfg.InputBucketName)
		t.Key = s.timestampKey()
		return s.putObject(ctx, t.Bucket, t.Key, body)
	})

	if !outcome.Success {
		span.SetAttributes(semconv.HTTPResponseStatusCode(http.StatusInternalServerError))
		return types.Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
			Body:       outcome.Err.Error(),
		}
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(http.StatusOK))
	return types.Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": ContentTypeJSON},
		Body:       string(body),
	}
}
