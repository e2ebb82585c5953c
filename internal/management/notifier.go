package management

import (
	"context"
	"fmt"
	"time"

	"tableflow/internal/broker"
	"tableflow/pkg/models"
)

// RuleEventPublisher announces rule changes on the rule update topic.
type RuleEventPublisher struct {
	producer broker.Producer
	topic    string
}

func NewRuleEventPublisher(producer broker.Producer, topic string) *RuleEventPublisher {
	return &RuleEventPublisher{producer: producer, topic: topic}
}

func (p *RuleEventPublisher) Publish(ctx context.Context, event models.RuleChangeEvent) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := models.PayloadFrom(event)
	if err != nil {
		return fmt.Errorf("failed to encode rule change event: %w", err)
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithSource("tableflow-management").
		WithType(models.TypeRuleChanged).
		WithTenant(event.TenantID).
		WithTimestamp(event.Timestamp).
		WithPayload(payload).
		Build()

	return p.producer.Publish(ctx, p.topic, *envelope)
}
