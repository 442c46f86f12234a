package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
)

var errTruncatedWithoutCursor = errors.New("listing is truncated but carries no continuation cursor")

// DeleteStage purges every object of the input bucket.
type DeleteStage struct {
	stage
}

func NewDeleteStage(cfg *config.Config, store BlobStore, injector chaos.Injector, recorder *telemetry.Recorder) *DeleteStage {
	return &DeleteStage{stage: newStage(cfg, store, injector, recorder)}
}

// Handle lists the whole bucket and deletes it in one batch. Only a listing
// failure fails the invocation; per-object delete failures are logged.
func (s *DeleteStage) Handle(ctx context.Context) telemetry.Outcome {
	ctx, requestID := telemetry.EnsureRequestID(ctx)
	ctx, span := s.recorder.StartInvocation(ctx, trace.SpanKindServer,
		semconv.FaaSTriggerTimer,
		semconv.FaaSInvocationID(requestID),
	)
	defer span.End()

	t := &target{RequestID: requestID}
	return s.guard(span, t, func() error {
		t.Bucket, _ = chaos.Bucket(s.chaos, chaos.DeleteRate, s.cfg.InputBucketName)

		keys, pages, err := s.listAll(ctx, t.Bucket)
		if err != nil {
			return err
		}

		failures := s.deleteAll(ctx, t.Bucket, keys)
		t.Attributes = []attribute.KeyValue{
			attribute.Int("list.pages", pages),
			attribute.Int("objects.listed", len(keys)),
			attribute.Int("objects.deleted", len(keys)-failures),
			attribute.Int("objects.failed", failures),
		}
		return nil
	})
}

// listAll follows the continuation cursor until a page is not truncated and
// returns the distinct keys in listing order.
func (s *DeleteStage) listAll(ctx context.Context, bucket string) ([]string, int, error) {
	s.log.Info().Str("bucket", bucket).Msg("Listing all custom objects in S3...")

	ctx, span := s.recorder.StartCall(ctx, "S3.ListObjects", trace.SpanKindClient, storageAttributes(bucket, "")...)

	keys := []string{}
	seen := make(map[string]struct{})
	cursor := ""
	pages := 0
	for {
		page, err := s.store.ListObjects(ctx, bucket, cursor)
		pages++
		if err != nil {
			s.recorder.EndCall(span, err)
			return nil, pages, newStageError(KindStorageList, err, "listing custom objects in S3")
		}

		for _, key := range page.Keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}

		if !page.Truncated {
			break
		}
		if page.NextCursor == "" {
			s.recorder.EndCall(span, errTruncatedWithoutCursor)
			return nil, pages, newStageError(KindStorageList, errTruncatedWithoutCursor, "listing custom objects in S3")
		}
		cursor = page.NextCursor
	}

	span.SetAttributes(attribute.Int("list.pages", pages), attribute.Int("objects.listed", len(keys)))
	s.recorder.EndCall(span, nil)
	return keys, pages, nil
}

// deleteAll issues one batch delete for keys and returns how many objects
// could not be deleted.
func (s *DeleteStage) deleteAll(ctx context.Context, bucket string, keys []string) int {
	s.log.Info().Str("bucket", bucket).Int("objects", len(keys)).Msg("Deleting all custom objects in S3...")

	ctx, span := s.recorder.StartCall(ctx, "S3.DeleteObjects", trace.SpanKindClient, storageAttributes(bucket, "")...)
	failures, err := s.store.DeleteObjects(ctx, bucket, keys)
	if err != nil {
		s.recorder.EndCall(span, err)
		s.log.Error().
			Err(newStageError(KindPartialDelete, err, "deleting custom objects in S3")).
			Str("bucket", bucket).
			Int("objects", len(keys)).
			Msg("Batch delete is failed.")
		return len(keys)
	}

	for _, failure := range failures {
		s.log.Warn().
			Str("kind", KindPartialDelete.String()).
			Str("bucket", bucket).
			Str("key", failure.Key).
			Str("code", failure.Code).
			Str("reason", failure.Message).
			Msg("Deleting custom object is failed.")
	}
	span.SetAttributes(attribute.Int("objects.failed", len(failures)))
	s.recorder.EndCall(span, nil)
	return len(failures)
}
