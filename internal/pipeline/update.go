package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/internal/utils"
)

// UpdateStage marks objects from storage notifications as updated, copies them
// to the output bucket and, when chained, announces them to Check.
type UpdateStage struct {
	stage
	publisher Publisher
}

func NewUpdateStage(cfg *config.Config, store BlobStore, publisher Publisher, injector chaos.Injector, recorder *telemetry.Recorder) *UpdateStage {
	return &UpdateStage{stage: newStage(cfg, store, injector, recorder), publisher: publisher}
}

// Handle processes every record independently. An empty notification is not
// an error.
func (s *UpdateStage) Handle(ctx context.Context, event types.StorageEvent) []telemetry.Outcome {
	if len(event.Records) == 0 {
		s.log.Info().Msg("Storage notification has no records, nothing to update.")
		return nil
	}

	outcomes := make([]telemetry.Outcome, 0, len(event.Records))
	for _, record := range event.Records {
		outcomes = append(outcomes, s.handleRecord(ctx, record))
	}
	return outcomes
}

func (s *UpdateStage) handleRecord(ctx context.Context, record types.StorageRecord) telemetry.Outcome {
	ctx, requestID := telemetry.EnsureRequestID(ctx)
	ctx, span := s.recorder.StartInvocation(ctx, trace.SpanKindConsumer,
		semconv.FaaSTriggerDatasource,
		semconv.FaaSInvocationID(requestID),
		semconv.FaaSDocumentCollection(record.Bucket),
		semconv.FaaSDocumentName(record.Key),
		semconv.FaaSDocumentOperationInsert,
	)
	defer span.End()

	t := &target{Bucket: record.Bucket, Key: record.Key, RequestID: requestID}
	return s.guard(span, t, func() error {
		body, err := s.getObject(ctx, record.Bucket, record.Key)
		if err != nil {
			return err
		}

		object, err := decodeObject(body)
		if err != nil {
			return err
		}
		object.IsUpdated = true

		updated, err := encodeObject(object)
		if err != nil {
			return err
		}

		t.Bucket, _ = chaos.Bucket(s.chaos, chaos.DefaultRate, s.cfg.OutputBucketName)
		if !s.cfg.ChainToCheck {
			t.Key = s.timestampKey()
		}
		if err := s.putObject(ctx, t.Bucket, t.Key, updated); err != nil {
			return err
		}

		if !s.cfg.ChainToCheck {
			return nil
		}
		return s.publish(ctx, types.ObjectLocation{Bucket: t.Bucket, Key: t.Key})
	})
}

func (s *UpdateStage) publish(ctx context.Context, location types.ObjectLocation) error {
	s.log.Info().Str("bucket", location.Bucket).Str("key", location.Key).Msg("Sending location of the updated custom object to the queue...")

	body, err := utils.SerializeJSON(location)
	if err != nil {
		return newStageError(KindSerialization, err, "converting message into string")
	}

	ctx, span := s.recorder.StartCall(ctx, "SQS.SendMessage", trace.SpanKindProducer,
		semconv.NetworkTransportKey.String("tcp"),
		semconv.MessagingSystemKey.String(messagingSystem(s.cfg)),
		semconv.MessagingDestinationName(s.cfg.QueueName()),
		telemetry.AttrQueueURL.String(s.cfg.QueueID()),
	)
	messageID, err := s.publisher.SendMessage(ctx, s.cfg.QueueID(), s.cfg.MessageGroupID, string(body))
	if err == nil {
		span.SetAttributes(semconv.MessagingMessageID(messageID))
	}
	s.recorder.EndCall(span, err)
	if err != nil {
		return newStageError(KindPublish, err, "sending location of the updated custom object to the queue")
	}
	return nil
}

func messagingSystem(cfg *config.Config) string {
	if cfg.QueueBackend == config.QueueBackendRabbitMQ {
		return "rabbitmq"
	}
	return "aws_sqs"
}

func messagingAttributes(cfg *config.Config, messageID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.FaaSTriggerPubsub,
		semconv.MessagingSystemKey.String(messagingSystem(cfg)),
		semconv.MessagingMessageID(messageID),
	}
}
