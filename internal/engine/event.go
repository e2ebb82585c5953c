package engine

import (
	"context"

	"github.com/google/uuid"

	"tableflow/internal/rules"
	"tableflow/pkg/errors"
)

// Event sources.
const (
	SourceAPI     = "api"
	SourceKafka   = "kafka"
	SourceMonitor = "session_monitor"
	SourceTimer   = "timer"
	SourceEngine  = "engine"
	SourceManual  = "manual"
)

// Event is one trigger delivered to the engine.
type Event struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id"`
	Trigger     rules.TriggerEvent `json:"trigger_event"`
	TableNumber string             `json:"table_number"`
	Context     map[string]any     `json:"context,omitempty"`
	Source      string             `json:"source,omitempty"`
	// Depth counts status_changed hops caused by earlier events.
	Depth int `json:"depth,omitempty"`
}

func NewEvent(tenantID string, trigger rules.TriggerEvent, tableNumber string, extra map[string]any) Event {
	return Event{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Trigger:     trigger,
		TableNumber: tableNumber,
		Context:     extra,
	}
}

func (e Event) Validate() error {
	if e.TenantID == "" {
		return errors.ErrValidation.WithDetail("field", "tenant_id").WithDetail("message", "tenant_id is required")
	}
	if e.TableNumber == "" {
		return errors.ErrValidation.WithDetail("field", "table_number").WithDetail("message", "table_number is required")
	}
	if !e.Trigger.Valid() {
		return errors.ErrValidation.WithDetail("field", "trigger_event").WithDetail("message", "unknown trigger event: "+string(e.Trigger))
	}
	return nil
}

// EventProcessor is implemented by Engine and consumed by every inbound
// trigger path.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, evt Event) EventResult
}
