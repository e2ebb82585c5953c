package audit

import (
	"context"
	"fmt"

	"tableflow/internal/broker"
	"tableflow/pkg/logging"
	"tableflow/pkg/models"
)

// Publisher streams execution logs to the audit topic.
type Publisher struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewPublisher(producer broker.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic, source: "tableflow-engine"}
}

func (p *Publisher) Write(ctx context.Context, entry ExecutionLog) error {
	payload, err := models.PayloadFrom(entry)
	if err != nil {
		return fmt.Errorf("failed to encode execution log: %w", err)
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithSource(p.source).
		WithType(models.TypeExecution).
		WithTenant(entry.TenantID).
		WithTraceID(logging.GetTraceID(ctx)).
		WithPayload(payload).
		Build()

	if err := p.producer.Publish(ctx, p.topic, *envelope); err != nil {
		return fmt.Errorf("failed to publish execution log: %w", err)
	}
	return nil
}
