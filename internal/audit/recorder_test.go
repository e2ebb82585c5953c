package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/engine"
	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/pkg/models"
)

var started = time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC)

func sampleResult() engine.EventResult {
	return engine.EventResult{
		EventID:     "evt-1",
		TenantID:    "tenant-a",
		TableNumber: "5",
		Trigger:     rules.TriggerOrderPlaced,
		Source:      "kafka",
		Rules: []engine.RuleExecutionResult{
			{RuleID: "occupy", RuleName: "Occupy on order", Matched: true, Actions: []engine.ActionResult{{Type: rules.ActionChangeStatus, Success: true}}},
			{RuleID: "vip", RuleName: "VIP only", Matched: false},
		},
		FollowUps: []engine.EventResult{{EventID: "evt-2"}},
		StartedAt: started,
		Duration:  42 * time.Millisecond,
	}
}

type memWriter struct {
	entries []ExecutionLog
	err     error
	ctxErr  error
}

func (w *memWriter) Write(ctx context.Context, entry ExecutionLog) error {
	w.ctxErr = ctx.Err()
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entry)
	return nil
}

type memProducer struct {
	topic    string
	messages []models.MessageEnvelope
	err      error
}

func (p *memProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.messages = append(p.messages, msg)
	return nil
}

func (p *memProducer) Close() error { return nil }

func TestFromResult(t *testing.T) {
	entry := FromResult(sampleResult())

	assert.Equal(t, "evt-1", entry.EventID)
	assert.Equal(t, "tenant-a", entry.TenantID)
	assert.Equal(t, "5", entry.TableNumber)
	assert.Equal(t, "order_placed", entry.Trigger)
	assert.Equal(t, "processed", entry.Outcome)
	assert.Equal(t, []string{"occupy"}, entry.MatchedRules)
	assert.Equal(t, int64(42), entry.DurationMs)
	assert.Equal(t, started, entry.CreatedAt)
	assert.Nil(t, entry.Result.FollowUps)
	assert.Len(t, entry.Result.Rules, 2)
}

func TestRecorder(t *testing.T) {
	t.Run("writes to every writer", func(t *testing.T) {
		first, second := &memWriter{}, &memWriter{}
		rec := NewRecorder(logger.NopLogger()).Add("postgres", first).Add("kafka", second)

		rec.Record(context.Background(), sampleResult())

		require.Len(t, first.entries, 1)
		require.Len(t, second.entries, 1)
		assert.Equal(t, "evt-1", first.entries[0].EventID)
		assert.Equal(t, 2, rec.Len())
	})

	t.Run("failing writer does not stop others", func(t *testing.T) {
		broken, ok := &memWriter{err: errors.New("db down")}, &memWriter{}
		rec := NewRecorder(logger.NopLogger()).Add("postgres", broken).Add("kafka", ok)

		rec.Record(context.Background(), sampleResult())

		assert.Len(t, ok.entries, 1)
	})

	t.Run("cancelled request still records", func(t *testing.T) {
		w := &memWriter{}
		rec := NewRecorder(logger.NopLogger()).Add("postgres", w)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec.Record(ctx, sampleResult())

		require.Len(t, w.entries, 1)
		assert.NoError(t, w.ctxErr)
	})

	t.Run("no writers", func(t *testing.T) {
		rec := NewRecorder(logger.NopLogger())
		assert.NotPanics(t, func() { rec.Record(context.Background(), sampleResult()) })
	})
}

func TestPublisher(t *testing.T) {
	producer := &memProducer{}
	pub := NewPublisher(producer, "table_audit")

	require.NoError(t, pub.Write(context.Background(), FromResult(sampleResult())))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "table_audit", producer.topic)
	assert.Equal(t, models.TypeExecution, msg.Type)
	assert.Equal(t, "tenant-a", msg.Metadata.TenantID)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "evt-1", msg.Payload["event_id"])
	assert.Equal(t, "processed", msg.Payload["outcome"])

	producer.err = errors.New("broker unavailable")
	assert.Error(t, pub.Write(context.Background(), FromResult(sampleResult())))
}
