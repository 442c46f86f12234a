// Package lambda adapts AWS Lambda trigger events to the pipeline stages.
package lambda

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

type Creator interface {
	Handle(ctx context.Context, req types.Request) types.Response
}

type Updater interface {
	Handle(ctx context.Context, event types.StorageEvent) []telemetry.Outcome
}

type Checker interface {
	Handle(ctx context.Context, batch types.QueueBatch) *telemetry.Outcome
}

type Purger interface {
	Handle(ctx context.Context) telemetry.Outcome
}

func ToRequest(req events.APIGatewayProxyRequest) types.Request {
	headers := make(map[string]string, len(req.Headers))
	for name, value := range req.Headers {
		headers[http.CanonicalHeaderKey(name)] = value
	}
	return types.Request{
		RequestID: req.RequestContext.RequestID,
		Method:    req.HTTPMethod,
		Path:      req.Path,
		Headers:   headers,
	}
}

// ToStorageEvent keeps only bucket and key. Notification keys arrive URL
// encoded; the decoded form is used when present.
func ToStorageEvent(event events.S3Event) types.StorageEvent {
	out := types.StorageEvent{Records: make([]types.StorageRecord, 0, len(event.Records))}
	for _, record := range event.Records {
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}
		out.Records = append(out.Records, types.StorageRecord{Bucket: record.S3.Bucket.Name, Key: key})
	}
	return out
}

func ToQueueBatch(event events.SQSEvent) types.QueueBatch {
	out := types.QueueBatch{Messages: make([]types.QueueMessage, 0, len(event.Records))}
	for _, record := range event.Records {
		out.Messages = append(out.Messages, types.QueueMessage{MessageID: record.MessageId, Body: record.Body})
	}
	return out
}

// CreateHandler never returns an error: failures are already a 500 response.
func CreateHandler(stage Creator) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp := stage.Handle(ctx, ToRequest(req))
		return events.APIGatewayProxyResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, nil
	}
}

// The remaining handlers complete normally whatever the outcome, so the
// platform neither retries nor redelivers.

func UpdateHandler(stage Updater) func(context.Context, events.S3Event) error {
	return func(ctx context.Context, event events.S3Event) error {
		stage.Handle(ctx, ToStorageEvent(event))
		return nil
	}
}

func CheckHandler(stage Checker) func(context.Context, events.SQSEvent) error {
	return func(ctx context.Context, event events.SQSEvent) error {
		stage.Handle(ctx, ToQueueBatch(event))
		return nil
	}
}

func DeleteHandler(stage Purger) func(context.Context) error {
	return func(ctx context.Context) error {
		stage.Handle(ctx)
		return nil
	}
}

// Start hands the handler to the Lambda runtime. onShutdown runs when the
// runtime sends SIGTERM.
func Start(handler any, onShutdown func()) {
	awslambda.StartWithOptions(handler, awslambda.WithEnableSIGTERM(onShutdown))
}
