package broker

import (
	"context"
	"fmt"

	"tableflow/internal/config"
	"tableflow/internal/logger"
	"tableflow/pkg/models"
)

// TypeKafka is the only supported broker.type.
const TypeKafka = "kafka"

// Producer publishes envelopes. Implementations key messages by tenant.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer feeds one topic into a handler until ctx is done. A handler error
// is retried; fatal errors and exhausted retries go to the DLQ.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	if cfg.Type != TypeKafka {
		return nil, fmt.Errorf("unknown broker type: %q", cfg.Type)
	}
	return NewKafkaProducer(cfg.Kafka, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	if cfg.Type != TypeKafka {
		return nil, fmt.Errorf("unknown broker type: %q", cfg.Type)
	}
	return NewKafkaConsumer(cfg.Kafka, log), nil
}
