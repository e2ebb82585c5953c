package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tableflow/pkg/logging"
)

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	ctx := logging.WithEventID(context.Background(), "evt-1")
	ctx = logging.WithTable(ctx, "tenant-a", "5")
	log.InfowCtx(ctx, "Event processed", "matched", 2)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, "tenant-a", fields["tenant_id"])
	assert.Equal(t, "5", fields["table_number"])
	assert.Equal(t, int64(2), fields["matched"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextFieldsUseSpanTraceID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	log.WarnwCtx(ctx, "Retrying")
	assert.Equal(t, traceID.String(), logs.All()[0].ContextMap()["trace_id"])

	log.WarnwCtx(logging.WithTraceID(ctx, "req-1"), "Retrying")
	assert.Equal(t, "req-1", logs.All()[1].ContextMap()["trace_id"])
}

func TestNewLevels(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("warn", format)
		require.NoError(t, err)
		sugared := log.(*SugaredLogger)
		assert.False(t, sugared.Desugar().Core().Enabled(zap.InfoLevel))
		assert.True(t, sugared.Desugar().Core().Enabled(zap.WarnLevel))
	}

	log, err := New("bogus", "json")
	require.NoError(t, err)
	assert.True(t, log.(*SugaredLogger).Desugar().Core().Enabled(zap.InfoLevel))
}
