package models

import "time"

// RuleChangeEvent announces an admin change to a tenant's rules.
type RuleChangeEvent struct {
	TenantID  string    `json:"tenant_id"`
	RuleID    string    `json:"rule_id,omitempty"`
	Action    string    `json:"action"`
	Version   int       `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionToggle  = "toggle"
	ActionReorder = "reorder"
	ActionSeed    = "seed_defaults"
)
