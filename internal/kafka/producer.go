package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher streams domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

type Producer struct {
	Writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer builds one writer shared by every topic; the topic is set per message.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, log: log}
}

// Publish marshals payload as JSON and writes it keyed so events of one entity stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	}); err != nil {
		p.log.LogKafka("PUBLISH_FAILED", topic, err.Error())
		return err
	}

	p.log.LogKafka("PUBLISH", topic, "key="+key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopPublisher drops every event. Used when KAFKA_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
