package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/mahirjain10/object-pipeline/internal/pipeline"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSService struct {
	client sqsAPI
}

func NewSQSService(client sqsAPI) *SQSService {
	return &SQSService{client: client}
}

// SendMessage publishes body to the queue at queueURL. groupID is required by
// FIFO queues.
func (service *SQSService) SendMessage(ctx context.Context, queueURL, groupID, body string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	}
	if groupID != "" {
		input.MessageGroupId = aws.String(groupID)
	}

	out, err := service.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", queueURL, err)
	}
	messageID := aws.ToString(out.MessageId)
	logger.Log.Debug().Str("queue_url", queueURL).Str("message_id", messageID).Msg("Pushed to queue")
	return messageID, nil
}

var _ pipeline.Publisher = (*SQSService)(nil)
