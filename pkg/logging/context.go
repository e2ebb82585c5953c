package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	EventIDKey     contextKey = "event_id"
	TenantIDKey    contextKey = "tenant_id"
	TableNumberKey contextKey = "table_number"
	ServiceNameKey contextKey = "service_name"
)

// fieldOrder fixes the order context fields are emitted in.
var fieldOrder = []contextKey{TraceIDKey, EventIDKey, TenantIDKey, TableNumberKey, ServiceNameKey}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// WithTable tags the context with the tenant and table an event targets.
func WithTable(ctx context.Context, tenantID, tableNumber string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	return context.WithValue(ctx, TableNumberKey, tableNumber)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string  { return get(ctx, TraceIDKey) }
func GetTenantID(ctx context.Context) string { return get(ctx, TenantIDKey) }

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(fieldOrder))

	for _, key := range fieldOrder {
		if v := get(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}

	return fields
}
