package pipeline

import (
	"context"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

// CheckStage marks the object named by a queue message as checked, in place.
type CheckStage struct {
	stage
}

func NewCheckStage(cfg *config.Config, store BlobStore, injector chaos.Injector, recorder *telemetry.Recorder) *CheckStage {
	return &CheckStage{stage: newStage(cfg, store, injector, recorder)}
}

// Handle processes the first message of the batch only and returns nil for an
// empty batch.
func (s *CheckStage) Handle(ctx context.Context, batch types.QueueBatch) *telemetry.Outcome {
	if len(batch.Messages) == 0 {
		s.log.Info().Msg("Queue batch has no messages, nothing to check.")
		return nil
	}
	if ignored := len(batch.Messages) - 1; ignored > 0 {
		s.log.Warn().Int("ignored", ignored).Msg("Only the first message of the batch is checked.")
	}
	message := batch.Messages[0]

	ctx, requestID := telemetry.EnsureRequestID(ctx)
	ctx, span := s.recorder.StartInvocation(ctx, trace.SpanKindConsumer,
		append(messagingAttributes(s.cfg, message.MessageID), semconv.FaaSInvocationID(requestID))...,
	)
	defer span.End()

	t := &target{RequestID: requestID}
	outcome := s.guard(span, t, func() error {
		location, err := types.ParseObjectLocation([]byte(message.Body))
		if err != nil {
			return newStageError(KindSerialization, err, "parsing queue message")
		}

		t.Bucket = location.Bucket
		t.Key, _ = chaos.Key(s.chaos, chaos.DefaultRate, location.Key)
		body, err := s.getObject(ctx, t.Bucket, t.Key)
		if err != nil {
			return err
		}

		object, err := decodeObject(body)
		if err != nil {
			return err
		}
		object.IsChecked = true

		checked, err := encodeObject(object)
		if err != nil {
			return err
		}
		return s.putObject(ctx, t.Bucket, t.Key, checked)
	})
	return &outcome
}
