package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

// BatchHandler handles one queue batch, typically the Check stage.
type BatchHandler func(ctx context.Context, batch types.QueueBatch) *telemetry.Outcome

type Consumer struct {
	url            string
	queueName      string
	workers        int
	handler        BatchHandler
	reconnectDelay time.Duration
	// run is one worker's loop, c.work outside tests.
	run func(ctx context.Context)
}

func NewConsumer(url, queueName string, workers int, handler BatchHandler) *Consumer {
	if workers < 1 {
		workers = 1
	}
	c := &Consumer{
		url:            url,
		queueName:      queueName,
		workers:        workers,
		handler:        handler,
		reconnectDelay: 5 * time.Second,
	}
	c.run = c.work
	return c
}

// ToBatch wraps a single delivery in a batch. The delivery tag stands in for
// a missing message id.
func ToBatch(d amqp.Delivery) types.QueueBatch {
	messageID := d.MessageId
	if messageID == "" {
		messageID = strconv.FormatUint(d.DeliveryTag, 10)
	}
	return types.QueueBatch{Messages: []types.QueueMessage{{MessageID: messageID, Body: string(d.Body)}}}
}

// HandleDelivery runs the handler and acks. Stage failures are already
// recorded on the outcome, so the message is never redelivered for them.
func (c *Consumer) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	outcome := c.handler(ctx, ToBatch(d))
	if outcome != nil && !outcome.Success {
		logger.Log.Warn().Str("queue", c.queueName).Str("error_kind", outcome.ErrorKind).Msg("message handled with failure")
	}
	if err := d.Ack(false); err != nil {
		logger.Log.Error().Err(err).Str("queue", c.queueName).Msg("failed to ack message")
	}
}

// Start runs the workers until ctx is done and returns once every worker has
// finished its current delivery and closed its connection.
func (c *Consumer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range c.workers {
		logger.Log.Info().Str("queue", c.queueName).Int("worker", i+1).Msg("worker started")
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.run(ctx)
		}()
	}
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down all consumers gracefully...")
	wg.Wait()
	return nil
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (c *Consumer) work(ctx context.Context) {
	log := logger.Log.With().Str("queue", c.queueName).Logger()

	var conn *amqp.Connection
	var ch *amqp.Channel
	defer func() {
		if ch != nil {
			ch.Close()
		}
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Shutting down...")
			return
		}

		if ch == nil || ch.IsClosed() {
			if conn == nil || conn.IsClosed() {
				newConn, err := NewRabbitMQClient(c.url)
				if err != nil {
					log.Error().Err(err).Msg("failed to connect")
					c.sleep(ctx, c.reconnectDelay)
					continue
				}
				conn = newConn
			}
			newCh, err := NewChannel(conn)
			if err != nil {
				log.Error().Err(err).Msg("Failed to create channel")
				c.sleep(ctx, c.reconnectDelay)
				continue
			}
			if _, err := NewQueue(newCh, c.queueName); err != nil {
				log.Error().Err(err).Msg("Failed to declare queue")
				newCh.Close()
				c.sleep(ctx, c.reconnectDelay)
				continue
			}
			ch = newCh
			log.Debug().Msg("Channel created")
		}

		msgs, err := NewQueueConsumer(ch, c.queueName, 1)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start consumer")
			ch.Close()
			ch = nil
			c.sleep(ctx, c.reconnectDelay)
			continue
		}

		log.Info().Msg("Worker started, waiting for messages...")

		channelClosed := false
		for !channelClosed {
			select {
			case <-ctx.Done():
				log.Info().Msg("Shutting down...")
				return
			case d, ok := <-msgs:
				if !ok {
					log.Warn().Msg("Channel closed, will recreate")
					ch = nil
					channelClosed = true
					c.sleep(ctx, 2*time.Second)
					break
				}
				c.HandleDelivery(ctx, d)
			}
		}
	}
}
