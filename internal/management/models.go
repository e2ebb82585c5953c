package management

import (
	"tableflow/internal/rules"
)

type CreateRuleRequest struct {
	Name           string               `json:"name" binding:"required"`
	Description    string               `json:"description"`
	TriggerEvent   rules.TriggerEvent   `json:"trigger_event" binding:"required"`
	Conditions     []rules.Condition    `json:"conditions"`
	ConditionLogic rules.ConditionLogic `json:"condition_logic"`
	Expression     string               `json:"expression"`
	Actions        []rules.Action       `json:"actions" binding:"required"`
	Priority       int                  `json:"priority"`
	IsActive       *bool                `json:"is_active"`
	AppliesTo      *rules.AppliesTo     `json:"applies_to"`
	Schedule       *rules.Schedule      `json:"schedule"`
}

type UpdateRuleRequest struct {
	Name           *string               `json:"name"`
	Description    *string               `json:"description"`
	TriggerEvent   *rules.TriggerEvent   `json:"trigger_event"`
	Conditions     *[]rules.Condition    `json:"conditions"`
	ConditionLogic *rules.ConditionLogic `json:"condition_logic"`
	Expression     *string               `json:"expression"`
	Actions        *[]rules.Action       `json:"actions"`
	Priority       *int                  `json:"priority"`
	IsActive       *bool                 `json:"is_active"`
	AppliesTo      *rules.AppliesTo      `json:"applies_to"`
	Schedule       *rules.Schedule       `json:"schedule"`
}

type RulePriority struct {
	ID       string `json:"id" binding:"required"`
	Priority int    `json:"priority"`
}

type ReorderRequest struct {
	Rules []RulePriority `json:"rules" binding:"required"`
}

// TestRuleRequest describes a dry run. With a table number the context is
// built from the stored table like a live event; otherwise Context is used
// as the whole evaluation context.
type TestRuleRequest struct {
	TableNumber string         `json:"table_number"`
	Context     map[string]any `json:"context"`
}

type GuardOutcome struct {
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
}

type TestRuleResult struct {
	RuleID            string                   `json:"rule_id"`
	Matched           bool                     `json:"matched"`
	ConditionsMatched bool                     `json:"conditions_matched"`
	Conditions        []rules.ConditionOutcome `json:"conditions"`
	Guard             *GuardOutcome            `json:"guard,omitempty"`
	IsActive          bool                     `json:"is_active"`
	InSchedule        bool                     `json:"in_schedule"`
	// AppliesToTable is only known when the test names a table.
	AppliesToTable *bool          `json:"applies_to_table,omitempty"`
	WouldExecute   bool           `json:"would_execute"`
	Actions        []rules.Action `json:"actions,omitempty"`
	Context        map[string]any `json:"context"`
}

type SeedResult struct {
	Created []rules.Rule `json:"created"`
	Skipped []string     `json:"skipped"`
}
