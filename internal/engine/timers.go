package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/pkg/errors"
	"tableflow/pkg/metrics"
)

// TimerKey identifies a pending delayed action. A rule holds at most one
// live timer per table.
type TimerKey struct {
	TenantID    string `json:"tenant_id"`
	TableNumber string `json:"table_number"`
	RuleID      string `json:"rule_id"`
}

func (k TimerKey) String() string {
	return k.TenantID + "-" + k.TableNumber + "-" + k.RuleID
}

type TimerInfo struct {
	Key     TimerKey         `json:"key"`
	Action  rules.ActionType `json:"action"`
	FiresAt time.Time        `json:"fires_at"`
}

// TimerFunc runs when a timer fires. ctx is cancelled when the registry stops.
type TimerFunc func(ctx context.Context)

type timerEntry struct {
	gen     uint64
	timer   *clock.Timer
	action  rules.ActionType
	firesAt time.Time
}

// TimerRegistry owns the in-memory delayed actions. Pending timers are lost
// on restart.
type TimerRegistry struct {
	clock  clock.Clock
	logger logger.Logger

	mu      sync.Mutex
	timers  map[TimerKey]*timerEntry
	gen     uint64
	stopped bool

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func NewTimerRegistry(clk clock.Clock, log logger.Logger) *TimerRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerRegistry{
		clock:  clk,
		logger: log,
		timers: make(map[TimerKey]*timerEntry),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start schedules fn after delay, cancelling any timer already held under
// key. It reports whether an existing timer was replaced.
func (r *TimerRegistry) Start(key TimerKey, action rules.ActionType, delay time.Duration, fn TimerFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		r.logger.Warnw("Timer registry stopped, dropping timer", "timer_key", key.String())
		return false
	}

	replaced := false
	if existing, ok := r.timers[key]; ok {
		existing.timer.Stop()
		replaced = true
		metrics.IncTimerEvent("replaced")
	}

	r.gen++
	gen := r.gen
	entry := &timerEntry{
		gen:     gen,
		action:  action,
		firesAt: r.clock.Now().Add(delay),
	}
	entry.timer = r.clock.AfterFunc(delay, func() { r.fire(key, gen, fn) })
	r.timers[key] = entry

	metrics.IncTimerEvent("scheduled")
	metrics.SetActiveTimers(len(r.timers))
	return replaced
}

// Cancel stops the timer under key. It reports whether one was pending.
func (r *TimerRegistry) Cancel(key TimerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.timers[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(r.timers, key)

	metrics.IncTimerEvent("cancelled")
	metrics.SetActiveTimers(len(r.timers))
	return true
}

// ClearForTable cancels every timer of one table and returns how many were
// pending.
func (r *TimerRegistry) ClearForTable(tenantID, tableNumber string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for key, entry := range r.timers {
		if key.TenantID != tenantID || key.TableNumber != tableNumber {
			continue
		}
		entry.timer.Stop()
		delete(r.timers, key)
		cleared++
		metrics.IncTimerEvent("cancelled")
	}

	metrics.SetActiveTimers(len(r.timers))
	return cleared
}

// List returns the pending timers of one table ordered by firing time.
func (r *TimerRegistry) List(tenantID, tableNumber string) []TimerInfo {
	r.mu.Lock()
	infos := make([]TimerInfo, 0)
	for key, entry := range r.timers {
		if key.TenantID == tenantID && key.TableNumber == tableNumber {
			infos = append(infos, TimerInfo{Key: key, Action: entry.action, FiresAt: entry.firesAt})
		}
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].FiresAt.Equal(infos[j].FiresAt) {
			return infos[i].Key.RuleID < infos[j].Key.RuleID
		}
		return infos[i].FiresAt.Before(infos[j].FiresAt)
	})
	return infos
}

func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels all pending timers and waits for running callbacks. It must
// not be called from inside a timer callback.
func (r *TimerRegistry) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for key, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, key)
	}
	r.mu.Unlock()

	metrics.SetActiveTimers(0)
	r.cancel()
	r.running.Wait()
}

// fire runs fn only if the entry under key is still the one that scheduled
// it. A timer that expired while being replaced finds a newer generation
// and does nothing.
func (r *TimerRegistry) fire(key TimerKey, gen uint64, fn TimerFunc) {
	r.mu.Lock()
	entry, ok := r.timers[key]
	if !ok || entry.gen != gen || r.stopped {
		r.mu.Unlock()
		metrics.IncTimerEvent("superseded")
		return
	}
	delete(r.timers, key)
	r.running.Add(1)
	metrics.SetActiveTimers(len(r.timers))
	r.mu.Unlock()

	defer r.running.Done()
	defer func() {
		if rec := recover(); rec != nil {
			err := errors.RecoverPanic(rec)
			r.logger.ErrorwCtx(r.ctx, "Timer callback panicked",
				"timer_key", key.String(),
				"error", err,
			)
		}
	}()

	metrics.IncTimerEvent("fired")
	fn(r.ctx)
}
