package lambda

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

type createFunc func(context.Context, types.Request) types.Response

func (f createFunc) Handle(ctx context.Context, req types.Request) types.Response { return f(ctx, req) }

type updateFunc func(context.Context, types.StorageEvent) []telemetry.Outcome

func (f updateFunc) Handle(ctx context.Context, event types.StorageEvent) []telemetry.Outcome {
	return f(ctx, event)
}

type checkFunc func(context.Context, types.QueueBatch) *telemetry.Outcome

func (f checkFunc) Handle(ctx context.Context, batch types.QueueBatch) *telemetry.Outcome {
	return f(ctx, batch)
}

type purgeFunc func(context.Context) telemetry.Outcome

func (f purgeFunc) Handle(ctx context.Context) telemetry.Outcome { return f(ctx) }

func TestToRequest(t *testing.T) {
	req := ToRequest(events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodPost,
		Path:           "/objects",
		Headers:        map[string]string{"user-agent": "curl/8.5.0"},
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
	})

	assert.Equal(t, types.Request{
		RequestID: "req-1",
		Method:    http.MethodPost,
		Path:      "/objects",
		Headers:   map[string]string{"User-Agent": "curl/8.5.0"},
	}, req)
}

func TestToStorageEvent(t *testing.T) {
	event := ToStorageEvent(events.S3Event{Records: []events.S3EventRecord{
		{S3: events.S3Entity{Bucket: events.S3Bucket{Name: "in"}, Object: events.S3Object{Key: "k1"}}},
		{S3: events.S3Entity{Bucket: events.S3Bucket{Name: "in"}, Object: events.S3Object{Key: "a+b", URLDecodedKey: "a b"}}},
	}})

	assert.Equal(t, []types.StorageRecord{{Bucket: "in", Key: "k1"}, {Bucket: "in", Key: "a b"}}, event.Records)
}

func TestToQueueBatch(t *testing.T) {
	batch := ToQueueBatch(events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m-1", Body: `{"bucket":"out","key":"k1"}`},
		{MessageId: "m-2", Body: `{"bucket":"out","key":"k2"}`},
	}})

	require.Len(t, batch.Messages, 2)
	assert.Equal(t, types.QueueMessage{MessageID: "m-1", Body: `{"bucket":"out","key":"k1"}`}, batch.Messages[0])
	assert.Empty(t, ToQueueBatch(events.SQSEvent{}).Messages)
}

func TestHandlers(t *testing.T) {
	t.Run("create maps the stage response", func(t *testing.T) {
		handler := CreateHandler(createFunc(func(_ context.Context, req types.Request) types.Response {
			assert.Equal(t, "req-1", req.RequestID)
			return types.Response{StatusCode: http.StatusInternalServerError, Body: "boom"}
		}))

		resp, err := handler(context.Background(), events.APIGatewayProxyRequest{
			RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
		})

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "boom", resp.Body)
	})

	t.Run("update swallows failures", func(t *testing.T) {
		var records int
		handler := UpdateHandler(updateFunc(func(_ context.Context, event types.StorageEvent) []telemetry.Outcome {
			records = len(event.Records)
			return []telemetry.Outcome{{Success: false}}
		}))

		err := handler(context.Background(), events.S3Event{Records: []events.S3EventRecord{{}}})

		assert.NoError(t, err)
		assert.Equal(t, 1, records)
	})

	t.Run("check swallows failures", func(t *testing.T) {
		handler := CheckHandler(checkFunc(func(context.Context, types.QueueBatch) *telemetry.Outcome {
			return &telemetry.Outcome{Success: false}
		}))

		assert.NoError(t, handler(context.Background(), events.SQSEvent{}))
	})

	t.Run("delete swallows failures", func(t *testing.T) {
		called := false
		handler := DeleteHandler(purgeFunc(func(context.Context) telemetry.Outcome {
			called = true
			return telemetry.Outcome{Success: false}
		}))

		assert.NoError(t, handler(context.Background()))
		assert.True(t, called)
	})
}
