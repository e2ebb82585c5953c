package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/errors"
	"tableflow/pkg/metrics"
	"tableflow/pkg/tracing"
)

// SessionMonitor periodically emits session_check for every occupied table
// with an open session.
type SessionMonitor struct {
	processor EventProcessor
	tables    tables.Store
	clock     clock.Clock
	interval  time.Duration
	logger    logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSessionMonitor(processor EventProcessor, store tables.Store, clk clock.Clock, interval time.Duration, log logger.Logger) *SessionMonitor {
	return &SessionMonitor{
		processor: processor,
		tables:    store,
		clock:     clk,
		interval:  interval,
		logger:    log,
		stop:      make(chan struct{}),
	}
}

// Start runs ticks until ctx is done or Stop is called. A failing tick is
// logged and the next one runs as scheduled.
func (m *SessionMonitor) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("session monitor interval must be positive, got %s", m.interval)
	}

	m.logger.InfowCtx(ctx, "Session monitor started", "interval", m.interval.String())

	tick := make(chan struct{}, 1)
	arm := func() *clock.Timer {
		return m.clock.AfterFunc(m.interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
	}

	timer := arm()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.InfowCtx(ctx, "Session monitor stopped")
			return nil
		case <-m.stop:
			timer.Stop()
			m.logger.InfowCtx(ctx, "Session monitor stopped")
			return nil
		case <-tick:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.ErrorwCtx(ctx, "Session check tick failed", "error", err)
			}
			timer = arm()
		}
	}
}

func (m *SessionMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// RunOnce performs a single tick and returns how many tables were checked.
func (m *SessionMonitor) RunOnce(ctx context.Context) (checked int, err error) {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "engine.session_check")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
		metrics.SessionMonitorTicksTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
	}()

	occupied, err := m.tables.FindOccupiedWithSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load occupied tables: %w", err)
	}

	now := m.clock.Now()
	for i := range occupied {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		m.check(ctx, &occupied[i], now)
		checked++
	}

	metrics.SessionMonitorTablesChecked.Set(float64(checked))
	m.logger.DebugwCtx(ctx, "Session check completed", "tables", checked)
	return checked, nil
}

func (m *SessionMonitor) check(ctx context.Context, table *tables.Table, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorwCtx(ctx, "Session check panicked",
				"tenant_id", table.TenantID,
				"table_number", table.Number,
				"error", errors.RecoverPanic(r),
			)
		}
	}()

	if table.SessionStartTime == nil {
		return
	}
	start := *table.SessionStartTime

	m.processor.ProcessEvent(ctx, Event{
		TenantID:    table.TenantID,
		Trigger:     rules.TriggerSessionCheck,
		TableNumber: table.Number,
		Context: map[string]any{
			ContextSession: map[string]any{
				"duration":   elapsedMillis(now, start),
				"start_time": start,
			},
		},
		Source: SourceMonitor,
	})
}
