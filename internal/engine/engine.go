package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/internal/notification"
	"tableflow/internal/realtime"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/cel"
	"tableflow/pkg/errors"
	"tableflow/pkg/logging"
	"tableflow/pkg/metrics"
	"tableflow/pkg/retry"
	"tableflow/pkg/tracing"
)

const tracerName = "rule-engine"

// maxChainDepth bounds how many status_changed hops one event may cause.
const maxChainDepth = 3

// ResultRecorder receives every finished EventResult.
type ResultRecorder interface {
	Record(ctx context.Context, result EventResult)
}

type Dependencies struct {
	Rules       rules.Store
	Tables      tables.Store
	Orders      tables.OrderStore
	Activity    tables.ActivityStore
	Notifier    notification.Sink
	Broadcaster realtime.Broadcaster
	Clock       clock.Clock
	// Location is the timezone rule schedules are evaluated in.
	Location *time.Location
	Logger   logger.Logger
}

type Option func(*Engine)

func WithRecorder(r ResultRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithSavePolicy(p retry.Policy) Option {
	return func(e *Engine) { e.executor.savePolicy = p }
}

func WithGuardEvaluator(ev *cel.Evaluator) Option {
	return func(e *Engine) { e.guards = ev }
}

type Engine struct {
	tables   tables.Store
	matcher  *rules.Matcher
	builder  *ContextBuilder
	executor *Executor
	timers   *TimerRegistry
	locks    *tableLocks
	guards   *cel.Evaluator
	recorder ResultRecorder
	clock    clock.Clock
	logger   logger.Logger
}

func DefaultSavePolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     constants.DefaultStatusSaveAttempts,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func New(deps Dependencies, opts ...Option) (*Engine, error) {
	if deps.Rules == nil || deps.Tables == nil {
		return nil, fmt.Errorf("rule and table stores are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = realtime.NopBroadcaster()
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notification sink is required")
	}
	if deps.Activity == nil {
		return nil, fmt.Errorf("activity store is required")
	}

	locks := newTableLocks()
	timers := NewTimerRegistry(deps.Clock, deps.Logger)

	e := &Engine{
		tables:  deps.Tables,
		matcher: rules.NewMatcher(deps.Rules, deps.Clock, deps.Location),
		builder: NewContextBuilder(deps.Orders, deps.Clock, deps.Logger),
		executor: &Executor{
			tables:      deps.Tables,
			activity:    deps.Activity,
			sink:        deps.Notifier,
			broadcaster: deps.Broadcaster,
			timers:      timers,
			locks:       locks,
			clock:       deps.Clock,
			logger:      deps.Logger,
			savePolicy:  DefaultSavePolicy(),
		},
		timers: timers,
		locks:  locks,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
	e.executor.reenter = func(ctx context.Context, evt Event) {
		e.ProcessEvent(ctx, evt)
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.guards == nil {
		guards, err := cel.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to create guard evaluator: %w", err)
		}
		e.guards = guards
	}
	return e, nil
}

// Guards returns the evaluator used for rule guard expressions.
func (e *Engine) Guards() *cel.Evaluator {
	return e.guards
}

// Stop cancels pending timers.
func (e *Engine) Stop() {
	e.timers.Stop()
}

// ProcessEvent runs every applicable rule of the event's tenant against the
// target table. It never returns an error; outcomes are in the result.
func (e *Engine) ProcessEvent(ctx context.Context, evt Event) EventResult {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}

	ctx = logging.WithEventID(ctx, evt.ID)
	ctx = logging.WithTable(ctx, evt.TenantID, evt.TableNumber)
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "engine.process_event")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", evt.TenantID),
		attribute.String("table_number", evt.TableNumber),
		attribute.String("trigger_event", string(evt.Trigger)),
	)

	start := e.clock.Now()
	result := EventResult{
		EventID:     evt.ID,
		TenantID:    evt.TenantID,
		TableNumber: evt.TableNumber,
		Trigger:     evt.Trigger,
		Source:      evt.Source,
		Rules:       make([]RuleExecutionResult, 0),
		StartedAt:   start,
	}

	var changes []StatusChange
	if err := evt.Validate(); err != nil {
		result.Error = err.Error()
		e.logger.WarnwCtx(ctx, "Rejected invalid event", "error", err)
	} else {
		changes = e.processLocked(ctx, evt, &result)
	}

	result.Duration = e.clock.Now().Sub(start)
	metrics.IncEvent(string(evt.Trigger), result.Outcome())
	metrics.ObserveEventDuration(string(evt.Trigger), result.Duration)
	span.SetAttributes(attribute.String("outcome", result.Outcome()))

	if e.recorder != nil {
		e.recorder.Record(ctx, result)
	}

	for _, change := range changes {
		if evt.Depth+1 > maxChainDepth {
			e.logger.WarnwCtx(ctx, "Status change chain too deep, not emitting status_changed",
				"depth", evt.Depth,
				"new_status", change.New,
			)
			continue
		}
		followUp := e.ProcessEvent(ctx, Event{
			TenantID:    evt.TenantID,
			Trigger:     rules.TriggerStatusChanged,
			TableNumber: evt.TableNumber,
			Context:     statusChangedContext(change, SourceEngine, ""),
			Source:      SourceEngine,
			Depth:       evt.Depth + 1,
		})
		result.FollowUps = append(result.FollowUps, followUp)
	}

	return result
}

// processLocked holds the table lock for the whole rule loop and returns the
// status changes that still need a status_changed event.
func (e *Engine) processLocked(ctx context.Context, evt Event, result *EventResult) []StatusChange {
	unlock := e.locks.Lock(evt.TenantID, evt.TableNumber)
	defer unlock()

	table, err := e.tables.FindByTenantAndNumber(ctx, evt.TenantID, evt.TableNumber)
	if err != nil {
		result.Error = err.Error()
		e.logger.ErrorwCtx(ctx, "Failed to load table", "error", err)
		return nil
	}
	if table == nil {
		result.Dropped = true
		result.DropReason = "table not found"
		e.logger.WarnwCtx(ctx, "Table not found, dropping event", "trigger_event", evt.Trigger)
		return nil
	}

	candidates, err := e.matcher.GetApplicableRules(ctx, evt.TenantID, evt.Trigger, View(table))
	if err != nil {
		result.Error = err.Error()
		e.logger.ErrorwCtx(ctx, "Failed to match rules", "error", err)
		return nil
	}
	if len(candidates) == 0 {
		e.logger.DebugwCtx(ctx, "No applicable rules", "trigger_event", evt.Trigger)
		return nil
	}

	evalCtx := e.builder.Build(ctx, table, evt.Context)

	var changes []StatusChange
	for _, rule := range candidates {
		rr, ruleChanges := e.runRule(ctx, evt.Trigger, rule, table, evalCtx)
		result.Rules = append(result.Rules, rr)
		changes = append(changes, ruleChanges...)
	}

	e.logger.InfowCtx(ctx, "Processed event",
		"trigger_event", evt.Trigger,
		"candidates", len(candidates),
		"matched", len(result.MatchedRules()),
		"status", table.Status,
	)
	return changes
}

func (e *Engine) runRule(ctx context.Context, trigger rules.TriggerEvent, rule rules.Rule, table *tables.Table, evalCtx EvalContext) (res RuleExecutionResult, changes []StatusChange) {
	start := e.clock.Now()
	res = RuleExecutionResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Priority: rule.Priority,
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			res.Error = err.Error()
			e.logger.ErrorwCtx(ctx, "Rule panicked", "rule_id", rule.ID, "error", err)
		}
		res.Duration = e.clock.Now().Sub(start)
	}()

	matched := rules.EvaluateAll(rule.Conditions, rule.ConditionLogic, evalCtx)
	if matched && rule.Expression != "" && e.guards != nil {
		ok, err := e.guards.EvaluateGuard(ctx, rule.Expression, evalCtx)
		if err != nil {
			res.Error = err.Error()
			e.logger.WarnwCtx(ctx, "Rule guard failed", "rule_id", rule.ID, "error", err)
			metrics.IncRuleEvaluation(string(trigger), "error")
			return res, nil
		}
		matched = ok
	}

	res.Matched = matched
	if !matched {
		metrics.IncRuleEvaluation(string(trigger), "skipped")
		return res, nil
	}
	metrics.IncRuleEvaluation(string(trigger), "matched")

	for _, action := range rule.Actions {
		ar := e.executor.Execute(ctx, action, table, rule, evalCtx)
		res.Actions = append(res.Actions, ar)
		if ar.StatusChange != nil {
			e.builder.Refresh(evalCtx, table)
			changes = append(changes, *ar.StatusChange)
		}
	}

	return res, changes
}

// ChangeStatus applies a manual status change and emits status_changed.
// Resetting a table to available cancels its pending timers.
func (e *Engine) ChangeStatus(ctx context.Context, tenantID, tableNumber, status, reason string) (*tables.Table, EventResult, error) {
	ctx = logging.WithTable(ctx, tenantID, tableNumber)
	if status == "" {
		return nil, EventResult{}, errors.ErrValidation.WithDetail("field", "status").WithDetail("message", "status is required")
	}
	if reason == "" {
		reason = "Manual status change"
	}

	table, change, err := e.changeStatusLocked(ctx, tenantID, tableNumber, status, reason)
	if err != nil {
		return nil, EventResult{}, err
	}
	if change == nil {
		return table, EventResult{}, nil
	}

	result := e.ProcessEvent(ctx, Event{
		TenantID:    tenantID,
		Trigger:     rules.TriggerStatusChanged,
		TableNumber: tableNumber,
		Context:     statusChangedContext(*change, SourceManual, ""),
		Source:      SourceManual,
	})
	return table, result, nil
}

func (e *Engine) changeStatusLocked(ctx context.Context, tenantID, tableNumber, status, reason string) (*tables.Table, *StatusChange, error) {
	unlock := e.locks.Lock(tenantID, tableNumber)
	defer unlock()

	table, err := e.tables.FindByTenantAndNumber(ctx, tenantID, tableNumber)
	if err != nil {
		return nil, nil, errors.ErrInternal.WithCause(err)
	}
	if table == nil {
		return nil, nil, errors.ErrNotFound.WithDetail("table_number", tableNumber)
	}

	if status == constants.TableStatusAvailable {
		if cleared := e.timers.ClearForTable(tenantID, tableNumber); cleared > 0 {
			e.logger.InfowCtx(ctx, "Cleared pending timers", "count", cleared)
		}
	}

	if table.Status == status {
		return table.Clone(), nil, nil
	}

	old, err := e.executor.saveStatus(ctx, table, status, reason, "")
	if err != nil {
		return nil, nil, errors.ErrInternal.WithCause(err)
	}

	change := StatusChange{Old: old, New: status, Reason: reason}
	metrics.IncStatusChange(status, SourceManual)
	e.executor.broadcastStatus(ctx, table, change)

	e.logger.InfowCtx(ctx, "Changed table status", "old_status", old, "new_status", status)
	return table.Clone(), &change, nil
}

// ClearTimers cancels the pending timers of one table.
func (e *Engine) ClearTimers(tenantID, tableNumber string) int {
	return e.timers.ClearForTable(tenantID, tableNumber)
}

func (e *Engine) PendingTimers(tenantID, tableNumber string) []TimerInfo {
	return e.timers.List(tenantID, tableNumber)
}

// View projects a table onto the fields rule scoping uses.
func View(table *tables.Table) rules.TableView {
	return rules.TableView{
		Number:  table.Number,
		Type:    table.Type,
		Floor:   table.Location.Floor,
		Section: table.Location.Section,
	}
}
