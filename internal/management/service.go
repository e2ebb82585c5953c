package management

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"tableflow/internal/audit"
	"tableflow/internal/constants"
	"tableflow/internal/engine"
	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/cel"
	pkgerrors "tableflow/pkg/errors"
	"tableflow/pkg/models"
)

type service struct {
	repo       RuleRepository
	tables     tables.Store
	orders     tables.OrderStore
	builder    *engine.ContextBuilder
	guards     *cel.Evaluator
	versioning VersioningRepository
	executions ExecutionReader
	publisher  *RuleEventPublisher
	clock      clock.Clock
	location   *time.Location
	logger     logger.Logger
}

type ServiceOption func(*service)

func WithVersioning(repo VersioningRepository) ServiceOption {
	return func(s *service) { s.versioning = repo }
}

func WithRuleEvents(p *RuleEventPublisher) ServiceOption {
	return func(s *service) { s.publisher = p }
}

func WithExecutions(r ExecutionReader) ServiceOption {
	return func(s *service) { s.executions = r }
}

// WithTables lets dry runs build their context from a stored table.
func WithTables(store tables.Store, orders tables.OrderStore) ServiceOption {
	return func(s *service) {
		s.tables = store
		s.orders = orders
	}
}

func WithClock(clk clock.Clock, loc *time.Location) ServiceOption {
	return func(s *service) {
		s.clock = clk
		if loc != nil {
			s.location = loc
		}
	}
}

// WithGuardEvaluator shares the engine's compiled program cache.
func WithGuardEvaluator(ev *cel.Evaluator) ServiceOption {
	return func(s *service) { s.guards = ev }
}

func NewService(repo RuleRepository, log logger.Logger, opts ...ServiceOption) (Service, error) {
	s := &service{
		repo:     repo,
		clock:    clock.New(),
		location: time.UTC,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guards == nil {
		guards, err := cel.NewEvaluator()
		if err != nil {
			return nil, err
		}
		s.guards = guards
	}
	if s.tables != nil {
		s.builder = engine.NewContextBuilder(s.orders, s.clock, s.logger)
	}
	return s, nil
}

func (s *service) CreateRule(ctx context.Context, tenantID string, req CreateRuleRequest) (*rules.Rule, error) {
	rule := &rules.Rule{
		TenantID:       tenantID,
		Name:           req.Name,
		Description:    req.Description,
		TriggerEvent:   req.TriggerEvent,
		Conditions:     req.Conditions,
		ConditionLogic: req.ConditionLogic,
		Expression:     req.Expression,
		Actions:        req.Actions,
		Priority:       req.Priority,
		IsActive:       getActiveValue(req.IsActive),
		AppliesTo:      req.AppliesTo,
		Schedule:       req.Schedule,
	}
	if rule.ConditionLogic == "" {
		rule.ConditionLogic = rules.LogicAll
	}
	if rule.Conditions == nil {
		rule.Conditions = []rules.Condition{}
	}
	if err := ValidateRule(*rule, s.guards); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, wrapRepoError(err)
	}

	version := s.recordChange(ctx, tenantID, rule.ID, models.ActionCreate, nil, rule)
	s.publish(ctx, tenantID, rule.ID, models.ActionCreate, version)
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, tenantID string, filter rules.ListFilter) ([]rules.Rule, error) {
	if filter.TriggerEvent != "" && !filter.TriggerEvent.Valid() {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "invalid trigger_event: "+string(filter.TriggerEvent))
	}
	list, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	return list, nil
}

func (s *service) GetRule(ctx context.Context, tenantID, id string) (*rules.Rule, error) {
	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, tenantID, id string, req UpdateRuleRequest) (*rules.Rule, error) {
	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	before := *rule
	applyUpdate(rule, req)

	if err := ValidateRule(*rule, s.guards); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, wrapRepoError(err)
	}

	version := s.recordChange(ctx, tenantID, id, models.ActionUpdate, &before, rule)
	s.publish(ctx, tenantID, id, models.ActionUpdate, version)
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, tenantID, id string) error {
	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return wrapRepoError(err)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return wrapRepoError(err)
	}

	s.recordChange(ctx, tenantID, id, models.ActionDelete, rule, nil)
	s.publish(ctx, tenantID, id, models.ActionDelete, 0)
	return nil
}

func (s *service) ToggleRule(ctx context.Context, tenantID, id string) (*rules.Rule, error) {
	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, wrapRepoError(err)
	}
	before := *rule
	rule.IsActive = !rule.IsActive

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, wrapRepoError(err)
	}

	version := s.recordChange(ctx, tenantID, id, models.ActionToggle, &before, rule)
	s.publish(ctx, tenantID, id, models.ActionToggle, version)
	return rule, nil
}

func (s *service) ReorderRules(ctx context.Context, tenantID string, req ReorderRequest) ([]rules.Rule, error) {
	if err := ValidateReorder(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	priorities := make(map[string]int, len(req.Rules))
	for _, r := range req.Rules {
		priorities[r.ID] = r.Priority
	}
	if err := s.repo.UpdatePriorities(ctx, tenantID, priorities); err != nil {
		return nil, wrapRepoError(err)
	}

	s.recordReorder(ctx, tenantID, req.Rules)
	s.publish(ctx, tenantID, "", models.ActionReorder, 0)

	return s.ListRules(ctx, tenantID, rules.ListFilter{})
}

// TestRule evaluates a stored rule without executing any action.
func (s *service) TestRule(ctx context.Context, tenantID, id string, req TestRuleRequest) (*TestRuleResult, error) {
	if err := ValidateTestRequest(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, wrapRepoError(err)
	}

	result := &TestRuleResult{
		RuleID:     rule.ID,
		IsActive:   rule.IsActive,
		InSchedule: rules.InSchedule(rule.Schedule, s.clock.Now().In(s.location)),
	}

	var evalCtx map[string]any
	if req.TableNumber != "" {
		if s.tables == nil {
			return nil, pkgerrors.ErrValidation.WithDetail("message", "table lookups are not available, pass context instead")
		}
		table, err := s.tables.FindByTenantAndNumber(ctx, tenantID, req.TableNumber)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		if table == nil {
			return nil, pkgerrors.ErrNotFound.WithDetail("table_number", req.TableNumber)
		}
		evalCtx = s.builder.Build(ctx, table, req.Context)
		applies := rules.AppliesToTable(rule.AppliesTo, engine.View(table))
		result.AppliesToTable = &applies
	} else {
		evalCtx = make(map[string]any, len(req.Context))
		for k, v := range req.Context {
			evalCtx[k] = v
		}
	}
	result.Context = evalCtx

	result.ConditionsMatched, result.Conditions = rules.Explain(rule.Conditions, rule.ConditionLogic, evalCtx)
	result.Matched = result.ConditionsMatched

	if rule.Expression != "" {
		guard := &GuardOutcome{Expression: rule.Expression}
		passed, err := s.guards.EvaluateGuard(ctx, rule.Expression, evalCtx)
		if err != nil {
			guard.Error = err.Error()
		}
		guard.Passed = passed
		result.Guard = guard
		result.Matched = result.Matched && passed
	}

	result.WouldExecute = result.Matched && result.IsActive && result.InSchedule &&
		(result.AppliesToTable == nil || *result.AppliesToTable)
	if result.Matched {
		result.Actions = rule.Actions
	}
	return result, nil
}

// SeedDefaults creates the built-in rules a tenant does not have yet,
// matching by name.
func (s *service) SeedDefaults(ctx context.Context, tenantID string) (*SeedResult, error) {
	if tenantID == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "tenant_id is required")
	}

	result := &SeedResult{Created: make([]rules.Rule, 0), Skipped: make([]string, 0)}
	for _, rule := range rules.Defaults(tenantID) {
		existing, err := s.repo.FindByName(ctx, tenantID, rule.Name)
		if err != nil {
			return nil, wrapRepoError(err)
		}
		if existing != nil {
			result.Skipped = append(result.Skipped, rule.Name)
			continue
		}
		if err := s.repo.Create(ctx, &rule); err != nil {
			return nil, wrapRepoError(err)
		}
		s.recordChange(ctx, tenantID, rule.ID, models.ActionSeed, nil, &rule)
		result.Created = append(result.Created, rule)
	}

	if len(result.Created) > 0 {
		s.publish(ctx, tenantID, "", models.ActionSeed, 0)
	}
	s.logger.InfowCtx(ctx, "Seeded default rules",
		"tenant_id", tenantID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *service) GetRuleVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error) {
	if s.versioning == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioning.GetVersions(ctx, tenantID, ruleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, tenantID string, ruleID *string, limit int) ([]AuditLog, error) {
	if s.versioning == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioning.GetAuditLogs(ctx, tenantID, ruleID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) ListExecutions(ctx context.Context, tenantID string, filter audit.ListFilter) ([]audit.ExecutionLog, error) {
	if s.executions == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithDetail("message", "execution history not enabled")
	}
	logs, err := s.executions.List(ctx, tenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) publish(ctx context.Context, tenantID, ruleID, action string, version int) {
	err := s.publisher.Publish(ctx, models.RuleChangeEvent{
		TenantID:  tenantID,
		RuleID:    ruleID,
		Action:    action,
		Version:   version,
		Timestamp: s.clock.Now().UTC(),
		ChangedBy: getChangedBy(ctx),
	})
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rule change event",
			"tenant_id", tenantID,
			"rule_id", ruleID,
			"action", action,
			"error", err,
		)
	}
}

func applyUpdate(rule *rules.Rule, req UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.TriggerEvent != nil {
		rule.TriggerEvent = *req.TriggerEvent
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.ConditionLogic != nil {
		rule.ConditionLogic = *req.ConditionLogic
	}
	if req.Expression != nil {
		rule.Expression = *req.Expression
	}
	if req.Actions != nil {
		rule.Actions = *req.Actions
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.AppliesTo != nil {
		rule.AppliesTo = req.AppliesTo
	}
	if req.Schedule != nil {
		rule.Schedule = req.Schedule
	}
}

// wrapRepoError keeps typed repository errors and marks the rest internal.
func wrapRepoError(err error) error {
	if pkgerrors.IsNotFound(err) || pkgerrors.IsConflict(err) || pkgerrors.IsValidation(err) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func getActiveValue(active *bool) bool {
	if active == nil {
		return true
	}
	return *active
}
