package engine

import (
	"context"
	"fmt"

	"tableflow/internal/broker"
	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/pkg/models"
	"tableflow/pkg/retry"
)

// TriggerPayload is the envelope payload of the trigger topic.
type TriggerPayload struct {
	TenantID     string             `json:"tenant_id"`
	TriggerEvent rules.TriggerEvent `json:"trigger_event"`
	TableNumber  string             `json:"table_number"`
	Context      map[string]any     `json:"context,omitempty"`
}

// Claimer guards against processing the same event twice.
type Claimer interface {
	Key(eventID string, fields map[string]any) (string, error)
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Consumer feeds trigger topic messages into the engine.
type Consumer struct {
	processor EventProcessor
	claimer   Claimer
	logger    logger.Logger
}

// NewConsumer wires a consumer; claimer may be nil to disable deduplication.
func NewConsumer(processor EventProcessor, claimer Claimer, log logger.Logger) *Consumer {
	return &Consumer{processor: processor, claimer: claimer, logger: log}
}

// Handler adapts the consumer to the broker callback.
func (c *Consumer) Handler() broker.HandlerFunc {
	return c.Handle
}

// Handle processes one envelope. Malformed payloads fail fatally so the
// broker parks them; engine failures release the claim and are retried.
func (c *Consumer) Handle(ctx context.Context, msg models.MessageEnvelope) error {
	if err := models.ValidateMessageEnvelope(&msg); err != nil {
		return retry.NewFatalError(err)
	}

	var payload TriggerPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return retry.NewFatalError(err)
	}

	evt := Event{
		ID:          msg.ID,
		TenantID:    payload.TenantID,
		Trigger:     payload.TriggerEvent,
		TableNumber: payload.TableNumber,
		Context:     payload.Context,
		Source:      SourceKafka,
	}
	if err := evt.Validate(); err != nil {
		return retry.NewFatalError(err)
	}

	key, claimed, err := c.claim(ctx, evt, msg.Payload)
	if err != nil {
		return err
	}
	if !claimed {
		c.logger.InfowCtx(ctx, "Skipping duplicate event",
			"tenant_id", evt.TenantID,
			"trigger_event", evt.Trigger,
		)
		return nil
	}

	result := c.processor.ProcessEvent(ctx, evt)
	if result.Error == "" {
		return nil
	}

	if key != "" {
		if err := c.claimer.Release(ctx, key); err != nil {
			c.logger.WarnwCtx(ctx, "Failed to release event claim, redelivery will be skipped until it expires",
				"key", key,
				"event_id", result.EventID,
				"error", err,
			)
		}
	}
	return fmt.Errorf("event %s failed: %s", result.EventID, result.Error)
}

func (c *Consumer) claim(ctx context.Context, evt Event, fields map[string]any) (string, bool, error) {
	if c.claimer == nil {
		return "", true, nil
	}

	key, err := c.claimer.Key(evt.ID, fields)
	if err != nil {
		return "", false, retry.NewFatalError(err)
	}

	claimed, err := c.claimer.Claim(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to claim event: %w", err)
	}
	return key, claimed, nil
}
