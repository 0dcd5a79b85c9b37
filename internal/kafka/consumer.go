package kafka

import (
	"context"
	"errors"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer creates a group consumer; offsets are committed only after the handler returns.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Start reads until ctx is cancelled. A handler error is logged and the message is still
// committed; redelivery is the handler's job.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, msg kafka.Message) error) error {
	topic := c.reader.Config().Topic
	c.log.LogKafka("CONSUME_START", topic, "group="+c.reader.Config().GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.log.LogKafka("FETCH_FAILED", topic, err.Error())
			return err
		}

		if err := handler(ctx, msg); err != nil {
			c.log.LogKafka("HANDLER_FAILED", topic, err.Error())
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.LogKafka("COMMIT_FAILED", topic, err.Error())
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
