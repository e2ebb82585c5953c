package bootstrap

import (
	"fmt"

	"tableflow/internal/broker"
	"tableflow/internal/config"
	"tableflow/internal/logger"
)

// Brokers holds the Kafka clients. Both are nil when no broker is configured.
type Brokers struct {
	Producer broker.Producer
	Consumer broker.Consumer
}

// InitBroker connects the producer and consumer. An empty broker type means
// the service runs HTTP-only.
func InitBroker(cfg config.BrokerConfig, serviceName string, log logger.Logger) (*Brokers, error) {
	if cfg.Type == "" {
		log.Warn("No broker configured; trigger consumption, audit stream and rule events are disabled")
		return &Brokers{}, nil
	}

	producer, err := broker.NewProducer(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(cfg, log)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	return &Brokers{Producer: producer, Consumer: consumer}, nil
}

func (b *Brokers) Enabled() bool {
	return b != nil && b.Producer != nil
}

func (b *Brokers) Close() []error {
	if b == nil {
		return nil
	}
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	return errs
}
