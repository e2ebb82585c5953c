package engine

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"tableflow/internal/logger"
	"tableflow/internal/tables"
)

// Reserved evaluation context sections. Event payload keys never override them.
const (
	ContextTable   = "table"
	ContextOrder   = "order"
	ContextSession = "session"
	ContextStatus  = "status"
)

var reservedKeys = map[string]struct{}{
	ContextTable:   {},
	ContextOrder:   {},
	ContextSession: {},
	ContextStatus:  {},
}

func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// EvalContext is the per-event data conditions are evaluated against.
type EvalContext = map[string]any

type ContextBuilder struct {
	orders tables.OrderStore
	clock  clock.Clock
	logger logger.Logger
}

func NewContextBuilder(orders tables.OrderStore, clk clock.Clock, log logger.Logger) *ContextBuilder {
	return &ContextBuilder{orders: orders, clock: clk, logger: log}
}

// Build assembles the evaluation context for table. The order section is
// present only when the table's current order resolves.
func (b *ContextBuilder) Build(ctx context.Context, table *tables.Table, extra map[string]any) EvalContext {
	evalCtx := make(EvalContext, len(extra)+4)

	for k, v := range extra {
		if IsReservedKey(k) {
			b.logger.DebugwCtx(ctx, "Ignoring reserved key in event context", "key", k)
			continue
		}
		evalCtx[k] = v
	}

	if table.CurrentOrder != "" && b.orders != nil {
		order, err := b.orders.FindByID(ctx, table.TenantID, table.CurrentOrder)
		if err != nil {
			b.logger.WarnwCtx(ctx, "Failed to load current order", "order_id", table.CurrentOrder, "error", err)
		} else if order != nil {
			evalCtx[ContextOrder] = OrderSnapshot(order)
		}
	}

	b.Refresh(evalCtx, table)
	return evalCtx
}

// Refresh rewrites the table derived sections after the table changed so
// later rules of the same event observe the new state.
func (b *ContextBuilder) Refresh(evalCtx EvalContext, table *tables.Table) {
	now := b.clock.Now()

	evalCtx[ContextTable] = TableSnapshot(table)

	session := map[string]any{"duration": int64(0)}
	if table.SessionStartTime != nil {
		session["start_time"] = *table.SessionStartTime
		session["startTime"] = *table.SessionStartTime
		session["duration"] = elapsedMillis(now, *table.SessionStartTime)
	}
	evalCtx[ContextSession] = session

	status := map[string]any{
		"current":           table.Status,
		"time_since_change": int64(0),
		"timeSinceChange":   int64(0),
	}
	if table.StatusChangedAt != nil {
		since := elapsedMillis(now, *table.StatusChangedAt)
		status["changed_at"] = *table.StatusChangedAt
		status["changedAt"] = *table.StatusChangedAt
		status["time_since_change"] = since
		status["timeSinceChange"] = since
	}
	if table.StatusChangeReason != "" {
		status["reason"] = table.StatusChangeReason
	}
	evalCtx[ContextStatus] = status
}

// Snapshots carry both snake_case and camelCase names for multi-word fields
// so rules written against either document shape resolve.

func TableSnapshot(table *tables.Table) map[string]any {
	features := make([]any, len(table.Features))
	for i, f := range table.Features {
		features[i] = f
	}

	snapshot := map[string]any{
		"id":       table.ID,
		"number":   table.Number,
		"type":     table.Type,
		"status":   table.Status,
		"capacity": int64(table.Capacity),
		"location": map[string]any{
			"floor":   int64(table.Location.Floor),
			"section": table.Location.Section,
		},
		"features": features,
	}
	if table.CurrentOrder != "" {
		snapshot["current_order"] = table.CurrentOrder
		snapshot["currentOrder"] = table.CurrentOrder
	}
	return snapshot
}

func OrderSnapshot(order *tables.Order) map[string]any {
	return map[string]any{
		"id":             order.ID,
		"_id":            order.ID,
		"amount":         order.Amount,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"paymentStatus":  order.PaymentStatus,
	}
}

func elapsedMillis(now, since time.Time) int64 {
	d := now.Sub(since).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
