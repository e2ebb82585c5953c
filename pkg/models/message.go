package models

import "time"

// Envelope types.
const (
	TypeTableEvent  = "table_event"
	TypeRuleChanged = "table_rule_changed"
	TypeExecution   = "rule_execution"
	// TypeUnparseable wraps raw bytes parked on the DLQ.
	TypeUnparseable = "unparseable"
)

type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID  string   `json:"trace_id,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	DLQ      *DLQInfo `json:"dlq,omitempty"`
}

// DLQInfo is attached to envelopes parked on the dead letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	SourceTopic string    `json:"source_topic"`
	Fatal       bool      `json:"fatal"`
	FailedAt    time.Time `json:"failed_at"`
}
