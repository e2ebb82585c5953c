package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/cel"
	apperrors "tableflow/pkg/errors"
)

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(Dependencies{})
	require.Error(t, err)

	_, err = New(Dependencies{Rules: &fakeRuleStore{}, Tables: newFakeTableStore()})
	require.Error(t, err)

	e, err := New(Dependencies{
		Rules:    &fakeRuleStore{},
		Tables:   newFakeTableStore(),
		Activity: &fakeActivity{},
		Notifier: &fakeSink{},
	})
	require.NoError(t, err)
	e.Stop()
}

func TestNew_GuardEvaluator(t *testing.T) {
	deps := Dependencies{
		Rules:    &fakeRuleStore{},
		Tables:   newFakeTableStore(),
		Activity: &fakeActivity{},
		Notifier: &fakeSink{},
	}

	shared, err := cel.NewEvaluator()
	require.NoError(t, err)
	e, err := New(deps, WithGuardEvaluator(shared))
	require.NoError(t, err)
	defer e.Stop()
	assert.Same(t, shared, e.Guards())

	own, err := New(deps)
	require.NoError(t, err)
	defer own.Stop()
	require.NotNil(t, own.Guards())
	assert.NotSame(t, shared, own.Guards())
}

func TestProcessEvent_OrderPlacedOccupiesTable(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.rules.add(newRule("auto-occupy", rules.TriggerOrderPlaced, 10,
		[]rules.Condition{cond("table.status", rules.OpEquals, "available")},
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied", Reason: "Order placed"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "5", map[string]any{"order_id": "o-1"})

	require.Empty(t, result.Error)
	assert.Equal(t, []string{"auto-occupy"}, result.MatchedRules())
	assert.Equal(t, "processed", result.Outcome())

	stored := h.tables.get(tenant, "5")
	require.NotNil(t, stored)
	assert.Equal(t, "occupied", stored.Status)
	assert.Equal(t, "Order placed", stored.StatusChangeReason)
	require.NotNil(t, stored.SessionStartTime)
	assert.True(t, stored.SessionStartTime.Equal(testNow))

	updates := h.bus.byEvent("table-status-update")
	require.Len(t, updates, 1)
	assert.Equal(t, "tenant:"+tenant, updates[0].Room)
	payload := updates[0].Payload.(map[string]any)
	assert.Equal(t, "5", payload["table_number"])
	assert.Equal(t, "available", payload["old_status"])
	assert.Equal(t, "occupied", payload["new_status"])
	assert.Equal(t, "Order placed", payload["reason"])

	require.Len(t, result.FollowUps, 1)
	assert.Equal(t, rules.TriggerStatusChanged, result.FollowUps[0].Trigger)
	assert.Equal(t, SourceEngine, result.FollowUps[0].Source)
}

func TestProcessEvent_TableNotFoundIsDropped(t *testing.T) {
	h := newHarness(t)
	h.rules.add(newRule("r1", rules.TriggerOrderPlaced, 1, nil,
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "99", nil)

	assert.True(t, result.Dropped)
	assert.Equal(t, "dropped", result.Outcome())
	assert.Empty(t, result.Rules)
	assert.Empty(t, h.bus.byEvent("table-status-update"))
}

func TestProcessEvent_InvalidEventIsReported(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))

	result := h.engine.ProcessEvent(context.Background(), Event{TenantID: tenant, Trigger: "bogus", TableNumber: "5"})

	assert.Contains(t, result.Error, "trigger_event")
	assert.Equal(t, "error", result.Outcome())
	assert.NotEmpty(t, result.EventID)
}

func TestProcessEvent_RuleStoreErrorIsReported(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.rules.err = errBoom

	result := h.process(rules.TriggerOrderPlaced, "5", nil)

	assert.Contains(t, result.Error, "boom")
	assert.Equal(t, "available", h.tables.get(tenant, "5").Status)
}

func TestProcessEvent_HigherPriorityRuleChangesWhatLowerRuleSees(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.rules.add(newRule("low", rules.TriggerOrderPlaced, 5,
		[]rules.Condition{cond("table.status", rules.OpEquals, "occupied")},
		rules.NewLogEvent(rules.LogConfig{Message: "seen occupied"}),
	))
	h.rules.add(newRule("high", rules.TriggerOrderPlaced, 10,
		[]rules.Condition{cond("table.status", rules.OpEquals, "available")},
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "5", nil)

	require.Len(t, result.Rules, 2)
	assert.Equal(t, "high", result.Rules[0].RuleID)
	assert.Equal(t, "low", result.Rules[1].RuleID)
	assert.Equal(t, []string{"high", "low"}, result.MatchedRules())
}

func TestProcessEvent_UnmatchedRuleRunsNoActions(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.rules.add(newRule("only-available", rules.TriggerOrderPlaced, 1,
		[]rules.Condition{cond("table.status", rules.OpEquals, "available")},
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "reserved"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "5", nil)

	require.Len(t, result.Rules, 1)
	assert.False(t, result.Rules[0].Matched)
	assert.Empty(t, result.Rules[0].Actions)
	assert.Equal(t, "no_match", result.Outcome())
	assert.Equal(t, "occupied", h.tables.get(tenant, "5").Status)
}

func TestProcessEvent_ActionFailureDoesNotStopLaterActions(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.sink.err = errBoom
	h.rules.add(newRule("notify-then-alert", rules.TriggerManual, 10, nil,
		rules.NewNotification(rules.NotificationConfig{Channel: "email", Recipients: []string{"manager"}, Message: "hi"}),
		rules.NewAlert(rules.AlertConfig{Level: "warning", Message: "Table {{table.number}} needs attention"}),
	))
	h.rules.add(newRule("second", rules.TriggerManual, 1, nil,
		rules.NewAssignWaiter(rules.AssignWaiterConfig{WaiterID: "w-1"}),
	))

	result := h.process(rules.TriggerManual, "5", nil)

	require.Len(t, result.Rules, 2)
	first := result.Rules[0]
	require.Len(t, first.Actions, 2)
	assert.False(t, first.Actions[0].Success)
	assert.Contains(t, first.Actions[0].Error, "boom")
	assert.True(t, first.Actions[1].Success)
	assert.True(t, result.Rules[1].Actions[0].Success)
	assert.Equal(t, "partial", result.Outcome())

	require.Len(t, h.activity.alerts, 1)
	assert.Equal(t, "Table 5 needs attention", h.activity.alerts[0].Message)
	require.Len(t, h.activity.assignments, 1)
	assert.Equal(t, "w-1", h.activity.assignments[0].WaiterID)
	assert.Len(t, h.bus.byEvent("waiter-assigned"), 1)
}

func TestProcessEvent_PanickingActionIsContained(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.activity.panicOn = true
	h.rules.add(newRule("alert", rules.TriggerManual, 10, nil,
		rules.NewAlert(rules.AlertConfig{Message: "x"}),
		rules.NewLogEvent(rules.LogConfig{Level: "warn", Message: "after"}),
	))

	result := h.process(rules.TriggerManual, "5", nil)

	require.Len(t, result.Rules, 1)
	actions := result.Rules[0].Actions
	require.Len(t, actions, 2)
	assert.False(t, actions[0].Success)
	assert.Contains(t, actions[0].Error, "alert store exploded")
	assert.True(t, actions[1].Success)
}

func TestProcessEvent_GuardExpressionFiltersRules(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))

	big := newRule("big-payment", rules.TriggerPaymentCompleted, 10, nil,
		rules.NewAlert(rules.AlertConfig{Message: "big"}),
	)
	big.Expression = `event.amount > 100.0`
	h.rules.add(big)

	broken := newRule("broken", rules.TriggerPaymentCompleted, 5, nil,
		rules.NewAlert(rules.AlertConfig{Message: "broken"}),
	)
	broken.Expression = `order.id == "o1"`
	h.rules.add(broken)

	result := h.process(rules.TriggerPaymentCompleted, "5", map[string]any{"amount": 250.0})
	require.Len(t, result.Rules, 2)
	assert.True(t, result.Rules[0].Matched)
	assert.False(t, result.Rules[1].Matched)
	assert.NotEmpty(t, result.Rules[1].Error)

	result = h.process(rules.TriggerPaymentCompleted, "5", map[string]any{"amount": 20.0})
	assert.False(t, result.Rules[0].Matched)
	assert.Len(t, h.activity.alerts, 1)
}

func TestProcessEvent_SameStatusIsSkipped(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.rules.add(newRule("noop", rules.TriggerManual, 1, nil,
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied"}),
	))

	result := h.process(rules.TriggerManual, "5", nil)

	require.Len(t, result.Rules[0].Actions, 1)
	assert.True(t, result.Rules[0].Actions[0].Skipped)
	assert.Empty(t, result.FollowUps)
	assert.Zero(t, h.tables.saves)
}

func TestProcessEvent_SaveRetriesOnVersionConflict(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.tables.conflicts = 1
	h.rules.add(newRule("occupy", rules.TriggerOrderPlaced, 1, nil,
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "5", nil)

	assert.True(t, result.Rules[0].Actions[0].Success)
	stored := h.tables.get(tenant, "5")
	assert.Equal(t, "occupied", stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestProcessEvent_SaveFailureRestoresTable(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.tables.saveErr = errBoom
	h.rules.add(newRule("occupy", rules.TriggerOrderPlaced, 10, nil,
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "occupied"}),
	))
	h.rules.add(newRule("still-available", rules.TriggerOrderPlaced, 1,
		[]rules.Condition{cond("table.status", rules.OpEquals, "available")},
		rules.NewLogEvent(rules.LogConfig{Message: "unchanged"}),
	))

	result := h.process(rules.TriggerOrderPlaced, "5", nil)

	assert.False(t, result.Rules[0].Actions[0].Success)
	assert.True(t, result.Rules[1].Matched)
	assert.Empty(t, h.bus.byEvent("table-status-update"))
}

func TestProcessEvent_StatusChangedChainIsBounded(t *testing.T) {
	h := newHarness(t, newTable("5", "a"))
	for _, step := range [][2]string{{"b", "c"}, {"c", "d"}, {"d", "e"}, {"e", "f"}} {
		h.rules.add(newRule("to-"+step[1], rules.TriggerStatusChanged, 1,
			[]rules.Condition{cond("new_status", rules.OpEquals, step[0])},
			rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: step[1]}),
		))
	}
	h.rules.add(newRule("kick", rules.TriggerManual, 1, nil,
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "b"}),
	))

	h.process(rules.TriggerManual, "5", nil)

	assert.Equal(t, "e", h.tables.get(tenant, "5").Status)
	assert.Len(t, h.recorder.byTrigger(rules.TriggerStatusChanged), maxChainDepth)
}

func TestProcessEvent_DelayedStatusChangeAppliesAfterDelay(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.rules.add(newRule("clean-after-payment", rules.TriggerPaymentCompleted, 10,
		[]rules.Condition{cond("table.status", rules.OpEquals, "occupied")},
		rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "cleaning", DelayMs: 120000}),
	))

	result := h.process(rules.TriggerPaymentCompleted, "5", nil)
	require.True(t, result.Rules[0].Actions[0].Scheduled)
	assert.Equal(t, "occupied", h.tables.get(tenant, "5").Status)
	assert.Len(t, h.engine.PendingTimers(tenant, "5"), 1)

	h.clock.Add(119 * time.Second)
	assert.Equal(t, "occupied", h.tables.get(tenant, "5").Status)

	h.clock.Add(time.Second)
	waitFor(t, func() bool { return len(h.recorder.byTrigger(rules.TriggerStatusChanged)) == 1 })
	stored := h.tables.get(tenant, "5")
	assert.Equal(t, "cleaning", stored.Status)
	assert.Equal(t, "Rule: clean-after-payment", stored.StatusChangeReason)
	assert.Empty(t, h.engine.PendingTimers(tenant, "5"))

	updates := h.bus.byEvent("table-status-update")
	require.Len(t, updates, 1)
	assert.Equal(t, "cleaning", updates[0].Payload.(map[string]any)["new_status"])

	changed := h.recorder.byTrigger(rules.TriggerStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, SourceTimer, changed[0].Source)
}

func TestProcessEvent_DelayedStatusChangeSkippedWhenStale(t *testing.T) {
	t.Run("status moved on", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))
		h.rules.add(newRule("clean", rules.TriggerPaymentCompleted, 1, nil,
			rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "cleaning", DelayMs: 60000}),
		))

		h.process(rules.TriggerPaymentCompleted, "5", nil)
		_, _, err := h.engine.ChangeStatus(context.Background(), tenant, "5", "reserved", "walk-in")
		require.NoError(t, err)

		h.clock.Add(time.Minute)
		h.settle(t, "5")
		assert.Equal(t, "reserved", h.tables.get(tenant, "5").Status)
	})

	t.Run("table deleted", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))
		h.rules.add(newRule("clean", rules.TriggerPaymentCompleted, 1, nil,
			rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "cleaning", DelayMs: 60000}),
		))

		h.process(rules.TriggerPaymentCompleted, "5", nil)
		h.tables.remove(tenant, "5")

		h.clock.Add(time.Minute)
		h.settle(t, "5")
		assert.Nil(t, h.tables.get(tenant, "5"))
		assert.Empty(t, h.bus.byEvent("table-status-update"))
	})
}

func TestProcessEvent_RescheduledTimerReplacesEarlierOne(t *testing.T) {
	h := newHarness(t, newTable("5", "occupied"))
	h.rules.add(newRule("check-in", rules.TriggerOrderPlaced, 1, nil,
		rules.NewStartTimer(rules.TimerConfig{DurationMinutes: 1}),
	))
	h.rules.add(newRule("on-expiry", rules.TriggerTimerExpired, 1,
		[]rules.Condition{cond("timer_rule_id", rules.OpEquals, "check-in")},
		rules.NewAlert(rules.AlertConfig{Message: "Check on table {{table.number}}"}),
	))

	h.process(rules.TriggerOrderPlaced, "5", nil)
	h.clock.Add(30 * time.Second)
	h.process(rules.TriggerOrderPlaced, "5", nil)
	assert.Len(t, h.engine.PendingTimers(tenant, "5"), 1)

	h.clock.Add(30 * time.Second)
	assert.Empty(t, h.recorder.byTrigger(rules.TriggerTimerExpired))

	h.clock.Add(30 * time.Second)
	waitFor(t, func() bool { return len(h.recorder.byTrigger(rules.TriggerTimerExpired)) == 1 })
	h.settle(t, "5")
	expired := h.recorder.byTrigger(rules.TriggerTimerExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, []string{"on-expiry"}, expired[0].MatchedRules())
	alerts := h.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Check on table 5", alerts[0].Message)
}

func TestProcessEvent_ReservedContextKeysCannotBeOverridden(t *testing.T) {
	h := newHarness(t, newTable("5", "available"))
	h.rules.add(newRule("occupied-only", rules.TriggerManual, 1,
		[]rules.Condition{cond("table.status", rules.OpEquals, "occupied")},
		rules.NewAlert(rules.AlertConfig{Message: "x"}),
	))

	result := h.process(rules.TriggerManual, "5", map[string]any{
		"table": map[string]any{"status": "occupied"},
	})

	assert.False(t, result.Rules[0].Matched)
}

func TestProcessEvent_OrderSectionFromCurrentOrder(t *testing.T) {
	table := newTable("5", "occupied")
	table.CurrentOrder = "o-1"
	h := newHarness(t, table)
	h.orders.orders["o-1"] = &tables.Order{ID: "o-1", TenantID: tenant, Amount: 420, Status: "served", PaymentStatus: "paid"}
	h.rules.add(newRule("paid", rules.TriggerPaymentCompleted, 1,
		[]rules.Condition{
			cond("order.payment_status", rules.OpEquals, "paid"),
			cond("order.amount", rules.OpGreaterThan, 400),
		},
		rules.NewLogEvent(rules.LogConfig{Message: "Order {{order.id}} paid {{order.amount}}"}),
	))

	result := h.process(rules.TriggerPaymentCompleted, "5", nil)

	assert.True(t, result.Rules[0].Matched)
}

func TestProcessEvent_CamelCaseContextPaths(t *testing.T) {
	table := newTable("5", "occupied")
	changed := testNow.Add(-30 * time.Minute)
	table.StatusChangedAt = &changed
	table.CurrentOrder = "o-1"
	h := newHarness(t, table)
	h.orders.orders["o-1"] = &tables.Order{ID: "o-1", TenantID: tenant, Amount: 80, Status: "served", PaymentStatus: "pending"}
	h.rules.add(newRule("stale-unpaid", rules.TriggerManual, 1,
		[]rules.Condition{
			cond("status.timeSinceChange", rules.OpGreaterThan, 20*60*1000),
			cond("order.paymentStatus", rules.OpNotEquals, "paid"),
		},
		rules.NewLogEvent(rules.LogConfig{Message: "Order {{order._id}} unpaid"}),
	))

	result := h.process(rules.TriggerManual, "5", nil)

	require.Len(t, result.Rules, 1)
	assert.True(t, result.Rules[0].Matched)
}

func TestSessionCheck_LongSessionNotifiesManager(t *testing.T) {
	table := newTable("5", "occupied")
	start := testNow.Add(-8000000 * time.Millisecond)
	table.SessionStartTime = &start
	h := newHarness(t, table, newTable("6", "available"))
	h.rules.add(newRule("long-session", rules.TriggerSessionCheck, 5,
		[]rules.Condition{cond("session.duration", rules.OpGreaterThan, 7200000)},
		rules.NewNotification(rules.NotificationConfig{
			Channel:    "socket",
			Recipients: []string{"manager"},
			Message:    "Table {{table.number}} has been occupied for over 2 hours",
		}),
	))

	monitor := NewSessionMonitor(h.engine, h.tables, h.clock, time.Minute, logger.NopLogger())
	checked, err := monitor.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, checked)

	sent := h.sink.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "socket", sent[0].Channel)
	assert.Equal(t, []string{"manager"}, sent[0].Recipients)
	assert.Equal(t, "Table 5 has been occupied for over 2 hours", sent[0].Message)

	alerts := h.bus.byEvent("table-alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, "tenant:"+tenant+":role:manager", alerts[0].Room)
	assert.Equal(t, "high", alerts[0].Payload.(map[string]any)["priority"])
}

func TestChangeStatus(t *testing.T) {
	t.Run("emits status_changed", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))
		h.rules.add(newRule("after-clean", rules.TriggerStatusChanged, 1,
			[]rules.Condition{cond("new_status", rules.OpEquals, "cleaning")},
			rules.NewAssignWaiter(rules.AssignWaiterConfig{Note: "clean table {{table.number}}"}),
		))

		table, result, err := h.engine.ChangeStatus(context.Background(), tenant, "5", "cleaning", "")
		require.NoError(t, err)
		assert.Equal(t, "cleaning", table.Status)
		assert.Equal(t, "Manual status change", table.StatusChangeReason)
		assert.Equal(t, SourceManual, result.Source)
		assert.Equal(t, []string{"after-clean"}, result.MatchedRules())
	})

	t.Run("available clears timers", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))
		h.rules.add(newRule("clean", rules.TriggerPaymentCompleted, 2, nil,
			rules.NewChangeStatus(rules.ChangeStatusConfig{NewStatus: "cleaning", DelayMs: 60000}),
		))
		h.rules.add(newRule("remind", rules.TriggerPaymentCompleted, 1, nil,
			rules.NewStartTimer(rules.TimerConfig{DurationMinutes: 5}),
		))
		h.process(rules.TriggerPaymentCompleted, "5", nil)
		require.Len(t, h.engine.PendingTimers(tenant, "5"), 2)

		table, _, err := h.engine.ChangeStatus(context.Background(), tenant, "5", "available", "closed")
		require.NoError(t, err)
		assert.Nil(t, table.SessionStartTime)
		assert.Empty(t, h.engine.PendingTimers(tenant, "5"))

		h.clock.Add(10 * time.Minute)
		h.settle(t, "5")
		assert.Equal(t, "available", h.tables.get(tenant, "5").Status)
		assert.Empty(t, h.recorder.byTrigger(rules.TriggerTimerExpired))
	})

	t.Run("unchanged status emits nothing", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))

		table, result, err := h.engine.ChangeStatus(context.Background(), tenant, "5", "occupied", "")
		require.NoError(t, err)
		assert.Equal(t, "occupied", table.Status)
		assert.Empty(t, result.EventID)
	})

	t.Run("unknown table", func(t *testing.T) {
		h := newHarness(t)

		_, _, err := h.engine.ChangeStatus(context.Background(), tenant, "404", "occupied", "")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("empty status", func(t *testing.T) {
		h := newHarness(t, newTable("5", "occupied"))

		_, _, err := h.engine.ChangeStatus(context.Background(), tenant, "5", "", "")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestRenderTemplate(t *testing.T) {
	rule := rules.Rule{ID: "r-1", Name: "Long session"}
	evalCtx := EvalContext{
		"table":  map[string]any{"number": "12", "status": "occupied", "capacity": int64(4)},
		"amount": 99.5,
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"no placeholders", "no placeholders"},
		{"Table {{table.number}} is {{table.status}}", "Table 12 is occupied"},
		{"{{ rule.name }} ({{rule.id}})", "Long session (r-1)"},
		{"Seats {{table.capacity}}, paid {{amount}}", "Seats 4, paid 99.5"},
		{"Missing {{order.id}}", "Missing {{order.id}}"},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, rule, evalCtx))
		})
	}
}

func TestEventResult_Outcome(t *testing.T) {
	assert.Equal(t, "error", EventResult{Error: "x"}.Outcome())
	assert.Equal(t, "dropped", EventResult{Dropped: true}.Outcome())
	assert.Equal(t, "no_match", EventResult{Rules: []RuleExecutionResult{{RuleID: "a"}}}.Outcome())
	assert.Equal(t, "partial", EventResult{Rules: []RuleExecutionResult{
		{RuleID: "a", Matched: true, Actions: []ActionResult{{Success: false}}},
	}}.Outcome())
	assert.Equal(t, "processed", EventResult{Rules: []RuleExecutionResult{
		{RuleID: "a", Matched: true, Actions: []ActionResult{{Success: true}}},
	}}.Outcome())
}

func TestEvent_Validate(t *testing.T) {
	valid := NewEvent(tenant, rules.TriggerOrderPlaced, "5", nil)
	require.NoError(t, valid.Validate())

	for name, evt := range map[string]Event{
		"tenant":  {Trigger: rules.TriggerOrderPlaced, TableNumber: "5"},
		"table":   {TenantID: tenant, Trigger: rules.TriggerOrderPlaced},
		"trigger": {TenantID: tenant, TableNumber: "5", Trigger: "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			err := evt.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.True(t, strings.Contains(err.Error(), name))
		})
	}
}
