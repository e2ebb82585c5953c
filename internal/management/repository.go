package management

import (
	"context"

	"tableflow/internal/audit"
	"tableflow/internal/rules"
)

// RuleRepository is the rule storage the admin surface needs.
type RuleRepository interface {
	Create(ctx context.Context, rule *rules.Rule) error
	Get(ctx context.Context, tenantID, id string) (*rules.Rule, error)
	List(ctx context.Context, tenantID string, filter rules.ListFilter) ([]rules.Rule, error)
	Update(ctx context.Context, rule *rules.Rule) error
	Delete(ctx context.Context, tenantID, id string) error
	UpdatePriorities(ctx context.Context, tenantID string, priorities map[string]int) error
	FindByName(ctx context.Context, tenantID, name string) (*rules.Rule, error)
}

// ExecutionReader serves the execution history endpoint.
type ExecutionReader interface {
	List(ctx context.Context, tenantID string, filter audit.ListFilter) ([]audit.ExecutionLog, error)
}

var (
	_ RuleRepository  = rules.Repository(nil)
	_ ExecutionReader = (*audit.PostgresRepository)(nil)
)
