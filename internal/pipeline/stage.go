package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

// stage holds what every stage shares. Stages keep no state between
// invocations.
type stage struct {
	cfg      *config.Config
	store    BlobStore
	chaos    chaos.Injector
	recorder *telemetry.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

func newStage(cfg *config.Config, store BlobStore, injector chaos.Injector, recorder *telemetry.Recorder) stage {
	if injector == nil {
		injector = chaos.Never
	}
	return stage{
		cfg:      cfg,
		store:    store,
		chaos:    injector,
		recorder: recorder,
		log:      logger.Stage(recorder.Stage().String()),
		now:      time.Now,
	}
}

// target is what an Outcome reports about the invocation. Stage bodies update
// it as the bucket and key become known.
type target struct {
	Bucket     string
	Key        string
	RequestID  string
	Attributes []attribute.KeyValue
}

func (t *target) outcome(err error) telemetry.Outcome {
	outcome := telemetry.Outcome{
		Success:    err == nil,
		Bucket:     t.Bucket,
		Key:        t.Key,
		RequestID:  t.RequestID,
		Attributes: t.Attributes,
	}
	if err != nil {
		outcome.ErrorKind = KindOf(err).String()
		outcome.Err = err
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			outcome.Err = stageErr.Err
		}
	}
	return outcome
}

// guard runs body and turns its error, or a panic, into a failure Outcome
// recorded on span. It never returns an error.
func (s *stage) guard(span trace.Span, t *target, body func() error) (outcome telemetry.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = t.outcome(&StageError{Kind: KindUnexpected, Err: errors.Errorf("recovered panic: %v", r)})
		}

		if outcome.Success {
			s.log.Info().
				Str("bucket", outcome.Bucket).
				Str("key", outcome.Key).
				Str("request_id", outcome.RequestID).
				Msg("Invocation is succeeded.")
		} else {
			s.log.Error().
				Stack().
				Err(outcome.Err).
				Str("kind", outcome.ErrorKind).
				Str("bucket", outcome.Bucket).
				Str("key", outcome.Key).
				Str("request_id", outcome.RequestID).
				Msg(s.recorder.ErrorDescription())
		}
		s.recorder.Record(span, outcome)
	}()

	return t.outcome(body())
}

func (s *stage) timestampKey() string {
	return strconv.FormatInt(s.now().UTC().UnixMilli(), 10)
}

func storageAttributes(bucket, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.NetworkTransportKey.String("tcp"),
		semconv.AWSS3BucketKey.String(bucket),
		semconv.AWSS3KeyKey.String(key),
	}
}

func (s *stage) getObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.log.Info().Str("bucket", bucket).Str("key", key).Msg("Getting custom object from S3...")

	ctx, span := s.recorder.StartCall(ctx, "S3.GetObject", trace.SpanKindClient, storageAttributes(bucket, key)...)
	body, err := s.store.GetObject(ctx, bucket, key)
	s.recorder.EndCall(span, err)
	if err != nil {
		return nil, newStageError(KindStorageRead, err, "getting custom object from S3")
	}
	return body, nil
}

func (s *stage) putObject(ctx context.Context, bucket, key string, body []byte) error {
	s.log.Info().Str("bucket", bucket).Str("key", key).Msg("Storing custom object into S3...")

	ctx, span := s.recorder.StartCall(ctx, "S3.PutObject", trace.SpanKindClient, storageAttributes(bucket, key)...)
	err := s.store.PutObject(ctx, bucket, key, body, ContentTypeJSON)
	s.recorder.EndCall(span, err)
	if err != nil {
		return newStageError(KindStorageWrite, err, "storing custom object into S3")
	}
	return nil
}

func encodeObject(object *types.CustomObject) ([]byte, error) {
	body, err := object.Bytes()
	if err != nil {
		return nil, newStageError(KindSerialization, err, "converting custom object into JSON bytes")
	}
	return body, nil
}

func decodeObject(body []byte) (*types.CustomObject, error) {
	object, err := types.ParseCustomObject(body)
	if err != nil {
		return nil, newStageError(KindSerialization, err, "parsing custom object")
	}
	return object, nil
}
