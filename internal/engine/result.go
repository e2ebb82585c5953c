package engine

import (
	"time"

	"tableflow/internal/rules"
)

type StatusChange struct {
	Old    string `json:"old_status"`
	New    string `json:"new_status"`
	Reason string `json:"reason,omitempty"`
}

type ActionResult struct {
	Type      rules.ActionType `json:"type"`
	Success   bool             `json:"success"`
	Scheduled bool             `json:"scheduled,omitempty"`
	Skipped   bool             `json:"skipped,omitempty"`
	Error     string           `json:"error,omitempty"`
	// StatusChange is set when the action changed the table status in place.
	StatusChange *StatusChange `json:"status_change,omitempty"`
}

type RuleExecutionResult struct {
	RuleID   string         `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	Priority int            `json:"priority"`
	Matched  bool           `json:"matched"`
	Actions  []ActionResult `json:"actions,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Failed reports whether the rule or any of its actions failed.
func (r RuleExecutionResult) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, a := range r.Actions {
		if !a.Success {
			return true
		}
	}
	return false
}

type EventResult struct {
	EventID     string                `json:"event_id"`
	TenantID    string                `json:"tenant_id"`
	TableNumber string                `json:"table_number"`
	Trigger     rules.TriggerEvent    `json:"trigger_event"`
	Source      string                `json:"source,omitempty"`
	Dropped     bool                  `json:"dropped,omitempty"`
	DropReason  string                `json:"drop_reason,omitempty"`
	Rules       []RuleExecutionResult `json:"rules"`
	// FollowUps hold the status_changed events this event caused.
	FollowUps []EventResult `json:"follow_ups,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

func (r EventResult) MatchedRules() []string {
	ids := make([]string, 0, len(r.Rules))
	for _, rr := range r.Rules {
		if rr.Matched {
			ids = append(ids, rr.RuleID)
		}
	}
	return ids
}

// Outcome is the metrics label for the event.
func (r EventResult) Outcome() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Dropped:
		return "dropped"
	case len(r.MatchedRules()) == 0:
		return "no_match"
	}
	for _, rr := range r.Rules {
		if rr.Failed() {
			return "partial"
		}
	}
	return "processed"
}
