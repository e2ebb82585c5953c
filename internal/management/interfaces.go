package management

import (
	"context"

	"tableflow/internal/audit"
	"tableflow/internal/rules"
)

type Service interface {
	CreateRule(ctx context.Context, tenantID string, req CreateRuleRequest) (*rules.Rule, error)
	ListRules(ctx context.Context, tenantID string, filter rules.ListFilter) ([]rules.Rule, error)
	GetRule(ctx context.Context, tenantID, id string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, tenantID, id string, req UpdateRuleRequest) (*rules.Rule, error)
	DeleteRule(ctx context.Context, tenantID, id string) error
	ToggleRule(ctx context.Context, tenantID, id string) (*rules.Rule, error)
	ReorderRules(ctx context.Context, tenantID string, req ReorderRequest) ([]rules.Rule, error)
	TestRule(ctx context.Context, tenantID, id string, req TestRuleRequest) (*TestRuleResult, error)
	SeedDefaults(ctx context.Context, tenantID string) (*SeedResult, error)

	GetRuleVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error)
	GetAuditLogs(ctx context.Context, tenantID string, ruleID *string, limit int) ([]AuditLog, error)
	ListExecutions(ctx context.Context, tenantID string, filter audit.ListFilter) ([]audit.ExecutionLog, error)
}
