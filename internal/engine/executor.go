package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/internal/notification"
	"tableflow/internal/realtime"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	pkgerrors "tableflow/pkg/errors"
	"tableflow/pkg/metrics"
	"tableflow/pkg/retry"
)

var (
	errTableGone  = errors.New("table no longer exists")
	errTableMoved = errors.New("table status changed concurrently")
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Executor runs single actions against a table. It never panics and never
// returns an error; failures are reported in the ActionResult.
type Executor struct {
	tables      tables.Store
	activity    tables.ActivityStore
	sink        notification.Sink
	broadcaster realtime.Broadcaster
	timers      *TimerRegistry
	locks       *tableLocks
	clock       clock.Clock
	logger      logger.Logger
	savePolicy  retry.Policy

	// reenter delivers events produced outside a running ProcessEvent call.
	reenter func(ctx context.Context, evt Event)
}

// Execute runs action for rule against table. Immediate status changes
// mutate table in place and are persisted before returning.
func (x *Executor) Execute(ctx context.Context, action rules.Action, table *tables.Table, rule rules.Rule, evalCtx EvalContext) (result ActionResult) {
	result = ActionResult{Type: action.Type}

	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.RecoverPanic(r)
			result.Success = false
			result.Scheduled = false
			result.Error = err.Error()
			x.logger.ErrorwCtx(ctx, "Action panicked",
				"rule_id", rule.ID,
				"action", action.Type,
				"error", err,
			)
		}
		metrics.IncActionExecution(string(action.Type), actionStatus(result))
	}()

	var err error
	switch action.Type {
	case rules.ActionChangeStatus:
		err = x.changeStatus(ctx, action.ChangeStatus, table, rule, &result)
	case rules.ActionSendNotification:
		err = x.sendNotification(ctx, action.Notification, table, rule, evalCtx)
	case rules.ActionAssignWaiter:
		err = x.assignWaiter(ctx, action.AssignWaiter, table, rule)
	case rules.ActionCreateAlert:
		err = x.createAlert(ctx, action.Alert, table, rule, evalCtx)
	case rules.ActionStartTimer:
		err = x.startTimer(ctx, action.Timer, table, rule, &result)
	case rules.ActionLogEvent:
		err = x.logEvent(ctx, action.Log, table, rule, evalCtx)
	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	if err != nil {
		result.Error = err.Error()
		x.logger.ErrorwCtx(ctx, "Action failed",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"action", action.Type,
			"error", err,
		)
		return result
	}

	result.Success = true
	return result
}

func actionStatus(r ActionResult) string {
	switch {
	case !r.Success:
		return "failed"
	case r.Scheduled:
		return "scheduled"
	case r.Skipped:
		return "skipped"
	default:
		return "success"
	}
}

func missingConfig(t rules.ActionType) error {
	return fmt.Errorf("action %s has no config", t)
}

func (x *Executor) changeStatus(ctx context.Context, cfg *rules.ChangeStatusConfig, table *tables.Table, rule rules.Rule, result *ActionResult) error {
	if cfg == nil {
		return missingConfig(rules.ActionChangeStatus)
	}
	if cfg.NewStatus == "" {
		return fmt.Errorf("new_status is required")
	}

	reason := statusReason(cfg, rule)

	if cfg.DelayMs > 0 {
		x.scheduleStatusChange(ctx, cfg, table, rule, reason)
		result.Scheduled = true
		return nil
	}

	if table.Status == cfg.NewStatus {
		result.Skipped = true
		return nil
	}

	old, err := x.saveStatus(ctx, table, cfg.NewStatus, reason, "")
	if err != nil {
		return err
	}

	change := StatusChange{Old: old, New: cfg.NewStatus, Reason: reason}
	result.StatusChange = &change
	metrics.IncStatusChange(cfg.NewStatus, "rule")
	x.broadcastStatus(ctx, table, change)
	return nil
}

func statusReason(cfg *rules.ChangeStatusConfig, rule rules.Rule) string {
	if cfg.Reason != "" {
		return cfg.Reason
	}
	return "Rule: " + rule.Name
}

// scheduleStatusChange arms a timer that applies the change only if the
// table still has the status it had when the timer was armed.
func (x *Executor) scheduleStatusChange(ctx context.Context, cfg *rules.ChangeStatusConfig, table *tables.Table, rule rules.Rule, reason string) {
	key := TimerKey{TenantID: table.TenantID, TableNumber: table.Number, RuleID: rule.ID}
	expected := table.Status
	newStatus := cfg.NewStatus
	ruleID := rule.ID

	replaced := x.timers.Start(key, rules.ActionChangeStatus, cfg.Delay(), func(timerCtx context.Context) {
		x.applyDelayedStatus(timerCtx, key, expected, newStatus, reason, ruleID)
	})

	x.logger.InfowCtx(ctx, "Scheduled delayed status change",
		"rule_id", rule.ID,
		"new_status", newStatus,
		"delay_ms", cfg.DelayMs,
		"replaced", replaced,
	)
}

func (x *Executor) applyDelayedStatus(ctx context.Context, key TimerKey, expected, newStatus, reason, ruleID string) {
	change, err := x.applyDelayedStatusLocked(ctx, key, expected, newStatus, reason)
	if err != nil {
		x.logger.ErrorwCtx(ctx, "Delayed status change failed",
			"timer_key", key.String(),
			"new_status", newStatus,
			"error", err,
		)
		return
	}
	if change == nil || x.reenter == nil {
		return
	}

	x.reenter(ctx, Event{
		TenantID:    key.TenantID,
		Trigger:     rules.TriggerStatusChanged,
		TableNumber: key.TableNumber,
		Context:     statusChangedContext(*change, SourceTimer, ruleID),
		Source:      SourceTimer,
		Depth:       1,
	})
}

func (x *Executor) applyDelayedStatusLocked(ctx context.Context, key TimerKey, expected, newStatus, reason string) (*StatusChange, error) {
	unlock := x.locks.Lock(key.TenantID, key.TableNumber)
	defer unlock()

	table, err := x.tables.FindByTenantAndNumber(ctx, key.TenantID, key.TableNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to reload table: %w", err)
	}
	if table == nil {
		x.logger.InfowCtx(ctx, "Table gone before delayed status change, skipping", "timer_key", key.String())
		metrics.IncTimerEvent("stale")
		return nil, nil
	}
	if table.Status != expected || table.Status == newStatus {
		x.logger.InfowCtx(ctx, "Table status moved on before delayed status change, skipping",
			"timer_key", key.String(),
			"expected_status", expected,
			"current_status", table.Status,
			"new_status", newStatus,
		)
		metrics.IncTimerEvent("stale")
		return nil, nil
	}

	old, err := x.saveStatus(ctx, table, newStatus, reason, expected)
	if errors.Is(err, errTableGone) || errors.Is(err, errTableMoved) {
		x.logger.InfowCtx(ctx, "Table changed while applying delayed status change, skipping", "timer_key", key.String())
		metrics.IncTimerEvent("stale")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	change := StatusChange{Old: old, New: newStatus, Reason: reason}
	metrics.IncStatusChange(newStatus, "delayed")
	x.broadcastStatus(ctx, table, change)
	return &change, nil
}

// saveStatus applies the status to table and persists it. Version conflicts
// reload the table and reapply the change, unless expected is set and the
// reloaded status differs from it. On failure table is restored.
func (x *Executor) saveStatus(ctx context.Context, table *tables.Table, status, reason, expected string) (string, error) {
	original := table.Clone()
	var old string

	err := retry.RetryWithCallback(ctx, x.savePolicy, func() error {
		old = table.ApplyStatus(status, reason, x.clock.Now())

		err := x.tables.Save(ctx, table)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tables.ErrVersionConflict) {
			return retry.NewFatalError(err)
		}

		metrics.StatusSaveConflictsTotal.Inc()
		fresh, ferr := x.tables.FindByTenantAndNumber(ctx, table.TenantID, table.Number)
		if ferr != nil {
			return retry.NewFatalError(ferr)
		}
		if fresh == nil {
			return retry.NewFatalError(errTableGone)
		}
		if expected != "" && fresh.Status != expected {
			return retry.NewFatalError(errTableMoved)
		}
		*table = *fresh
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		x.logger.WarnwCtx(ctx, "Retrying table save after version conflict",
			"attempt", attempt,
			"next_delay_ms", nextDelay.Milliseconds(),
		)
	})
	if err != nil {
		*table = *original
		return "", fmt.Errorf("failed to save table status: %w", err)
	}

	return old, nil
}

func (x *Executor) broadcastStatus(ctx context.Context, table *tables.Table, change StatusChange) {
	payload := map[string]any{
		"table_number": table.Number,
		"old_status":   change.Old,
		"new_status":   change.New,
		"reason":       change.Reason,
		"timestamp":    x.clock.Now().UTC(),
	}
	x.emit(ctx, realtime.TenantRoom(table.TenantID), constants.RealtimeEventStatusUpdate, payload)
}

func (x *Executor) emit(ctx context.Context, room, event string, payload any) {
	err := x.broadcaster.Emit(ctx, room, event, payload)
	metrics.IncBroadcast(event, metrics.StatusLabel(err))
	if err != nil {
		x.logger.WarnwCtx(ctx, "Realtime broadcast failed", "room", room, "event", event, "error", err)
	}
}

func (x *Executor) sendNotification(ctx context.Context, cfg *rules.NotificationConfig, table *tables.Table, rule rules.Rule, evalCtx EvalContext) error {
	if cfg == nil {
		return missingConfig(rules.ActionSendNotification)
	}

	message := RenderTemplate(cfg.Message, rule, evalCtx)
	sendErr := x.sink.Send(ctx, notification.Message{
		TenantID:   table.TenantID,
		Channel:    cfg.Channel,
		Recipients: cfg.Recipients,
		Message:    message,
		Data: map[string]any{
			"table_number": table.Number,
			"table_status": table.Status,
			"rule_id":      rule.ID,
			"rule_name":    rule.Name,
		},
	})

	payload := map[string]any{
		"table_number": table.Number,
		"message":      message,
		"rule_id":      rule.ID,
		"rule_name":    rule.Name,
		"priority":     "high",
		"timestamp":    x.clock.Now().UTC(),
	}
	for _, role := range cfg.Recipients {
		x.emit(ctx, realtime.RoleRoom(table.TenantID, role), constants.RealtimeEventAlert, payload)
	}

	if sendErr != nil {
		return fmt.Errorf("failed to send %s notification: %w", cfg.Channel, sendErr)
	}
	return nil
}

func (x *Executor) assignWaiter(ctx context.Context, cfg *rules.AssignWaiterConfig, table *tables.Table, rule rules.Rule) error {
	if cfg == nil {
		return missingConfig(rules.ActionAssignWaiter)
	}

	assignment := &tables.WaiterAssignment{
		TenantID:    table.TenantID,
		TableNumber: table.Number,
		WaiterID:    cfg.WaiterID,
		RuleID:      rule.ID,
		Note:        cfg.Note,
		AssignedAt:  x.clock.Now().UTC(),
	}
	if err := x.activity.CreateWaiterAssignment(ctx, assignment); err != nil {
		return err
	}

	x.emit(ctx, realtime.TenantRoom(table.TenantID), constants.RealtimeEventWaiterAssigned, assignment)
	return nil
}

func (x *Executor) createAlert(ctx context.Context, cfg *rules.AlertConfig, table *tables.Table, rule rules.Rule, evalCtx EvalContext) error {
	if cfg == nil {
		return missingConfig(rules.ActionCreateAlert)
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	alert := &tables.Alert{
		TenantID:    table.TenantID,
		TableNumber: table.Number,
		RuleID:      rule.ID,
		Level:       level,
		Message:     RenderTemplate(cfg.Message, rule, evalCtx),
		Roles:       cfg.Roles,
		CreatedAt:   x.clock.Now().UTC(),
	}
	if err := x.activity.CreateAlert(ctx, alert); err != nil {
		return err
	}

	if len(cfg.Roles) == 0 {
		x.emit(ctx, realtime.TenantRoom(table.TenantID), constants.RealtimeEventAlert, alert)
		return nil
	}
	for _, role := range cfg.Roles {
		x.emit(ctx, realtime.RoleRoom(table.TenantID, role), constants.RealtimeEventAlert, alert)
	}
	return nil
}

func (x *Executor) startTimer(ctx context.Context, cfg *rules.TimerConfig, table *tables.Table, rule rules.Rule, result *ActionResult) error {
	if cfg == nil {
		return missingConfig(rules.ActionStartTimer)
	}
	if cfg.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}

	key := TimerKey{TenantID: table.TenantID, TableNumber: table.Number, RuleID: rule.ID}
	minutes := cfg.DurationMinutes
	ruleID := rule.ID

	replaced := x.timers.Start(key, rules.ActionStartTimer, cfg.Duration(), func(timerCtx context.Context) {
		if x.reenter == nil {
			return
		}
		x.reenter(timerCtx, Event{
			TenantID:    key.TenantID,
			Trigger:     rules.TriggerTimerExpired,
			TableNumber: key.TableNumber,
			Context: map[string]any{
				"timer_rule_id":  ruleID,
				"timer_duration": minutes,
			},
			Source: SourceTimer,
		})
	})

	x.logger.InfowCtx(ctx, "Started timer",
		"rule_id", rule.ID,
		"duration_minutes", minutes,
		"replaced", replaced,
	)
	result.Scheduled = true
	return nil
}

func (x *Executor) logEvent(ctx context.Context, cfg *rules.LogConfig, table *tables.Table, rule rules.Rule, evalCtx EvalContext) error {
	if cfg == nil {
		return missingConfig(rules.ActionLogEvent)
	}

	message := RenderTemplate(cfg.Message, rule, evalCtx)
	fields := []interface{}{
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"table_status", table.Status,
	}

	switch strings.ToLower(cfg.Level) {
	case "debug":
		x.logger.DebugwCtx(ctx, message, fields...)
	case "warn", "warning":
		x.logger.WarnwCtx(ctx, message, fields...)
	case "error":
		x.logger.ErrorwCtx(ctx, message, fields...)
	default:
		x.logger.InfowCtx(ctx, message, fields...)
	}
	return nil
}

// RenderTemplate substitutes {{path}} placeholders. rule.name and rule.id
// come from the rule; other paths resolve against the evaluation context.
// Unresolved placeholders are left as written.
func RenderTemplate(tmpl string, rule rules.Rule, evalCtx EvalContext) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		switch path {
		case "rule.name":
			return rule.Name
		case "rule.id":
			return rule.ID
		}
		v, ok := rules.Resolve(evalCtx, path)
		if !ok || v == nil {
			return match
		}
		return rules.Stringify(v)
	})
}

func statusChangedContext(change StatusChange, source, ruleID string) map[string]any {
	ctx := map[string]any{
		"previous_status": change.Old,
		"new_status":      change.New,
		"reason":          change.Reason,
		"source":          source,
	}
	if ruleID != "" {
		ctx["rule_id"] = ruleID
	}
	return ctx
}
