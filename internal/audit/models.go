package audit

import (
	"time"

	"tableflow/internal/engine"
)

// ExecutionLog is one processed event as stored in rule_execution_logs and
// published on the audit topic.
type ExecutionLog struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	TenantID     string             `json:"tenant_id"`
	TableNumber  string             `json:"table_number"`
	Trigger      string             `json:"trigger_event"`
	Source       string             `json:"source,omitempty"`
	Outcome      string             `json:"outcome"`
	MatchedRules []string           `json:"matched_rules"`
	Result       engine.EventResult `json:"result"`
	Error        string             `json:"error,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
	CreatedAt    time.Time          `json:"created_at"`
}

// FromResult builds the log entry for one processed event. Follow-ups are
// recorded as entries of their own.
func FromResult(r engine.EventResult) ExecutionLog {
	flat := r
	flat.FollowUps = nil
	return ExecutionLog{
		EventID:      r.EventID,
		TenantID:     r.TenantID,
		TableNumber:  r.TableNumber,
		Trigger:      string(r.Trigger),
		Source:       r.Source,
		Outcome:      r.Outcome(),
		MatchedRules: r.MatchedRules(),
		Result:       flat,
		Error:        r.Error,
		DurationMs:   r.Duration.Milliseconds(),
		CreatedAt:    r.StartedAt,
	}
}

type ListFilter struct {
	TableNumber string
	Trigger     string
	Outcome     string
	Since       time.Time
	Limit       int
	Offset      int
}
