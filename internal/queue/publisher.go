package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mahirjain10/object-pipeline/internal/pipeline"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

// HeaderMessageGroup carries the message group on RabbitMQ publishings.
const HeaderMessageGroup = "x-message-group-id"

const publishTimeout = 5 * time.Second

// RabbitMqPublisher publishes to a queue through the default exchange. The
// connection is opened on first use and reopened after it closes.
type RabbitMqPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewRabbitMqPublisher(url string) *RabbitMqPublisher {
	return &RabbitMqPublisher{url: url, declared: make(map[string]bool)}
}

func newPublishing(groupID, body string) amqp.Publishing {
	publishing := amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  pipeline.ContentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         []byte(body),
	}
	if groupID != "" {
		publishing.Headers = amqp.Table{HeaderMessageGroup: groupID}
	}
	return publishing
}

func (p *RabbitMqPublisher) channel(queueName string) (*amqp.Channel, error) {
	if p.ch == nil || p.ch.IsClosed() {
		if p.conn == nil || p.conn.IsClosed() {
			conn, err := NewRabbitMQClient(p.url)
			if err != nil {
				return nil, err
			}
			p.conn = conn
		}
		ch, err := NewChannel(p.conn)
		if err != nil {
			return nil, err
		}
		p.ch = ch
		p.declared = make(map[string]bool)
	}

	if !p.declared[queueName] {
		if _, err := NewQueue(p.ch, queueName); err != nil {
			return nil, err
		}
		p.declared[queueName] = true
	}
	return p.ch, nil
}

func (p *RabbitMqPublisher) SendMessage(ctx context.Context, queueName, groupID, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(queueName)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	publishing := newPublishing(groupID, body)
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, publishing); err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	logger.Log.Debug().Str("queue", queueName).Str("message_id", publishing.MessageId).Msg("Pushed to queue")
	return publishing.MessageId, nil
}

func (p *RabbitMqPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Error closing channel")
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
		p.conn = nil
	}
	return nil
}

var _ pipeline.Publisher = (*RabbitMqPublisher)(nil)
