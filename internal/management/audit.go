package management

import (
	"context"
	"encoding/json"

	"tableflow/internal/rules"
	"tableflow/pkg/models"
)

type changeContextKey string

const (
	changedByKey changeContextKey = "changed_by"
	clientIPKey  changeContextKey = "client_ip"
)

// WithChangedBy records who is making an admin change.
func WithChangedBy(ctx context.Context, user, clientIP string) context.Context {
	if user != "" {
		ctx = context.WithValue(ctx, changedByKey, user)
	}
	if clientIP != "" {
		ctx = context.WithValue(ctx, clientIPKey, clientIP)
	}
	return ctx
}

func getChangedBy(ctx context.Context) string {
	if user, ok := ctx.Value(changedByKey).(string); ok && user != "" {
		return user
	}
	return "system"
}

func getClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// recordChange stores a new version (unless the rule was deleted) and an
// audit entry. Failures are logged; the admin change itself already happened.
func (s *service) recordChange(ctx context.Context, tenantID, ruleID, action string, before, after *rules.Rule) int {
	if s.versioning == nil {
		return 0
	}

	version := 0
	if after != nil {
		next, err := s.versioning.GetNextVersion(ctx, tenantID, ruleID)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Failed to compute next rule version", "rule_id", ruleID, "error", err)
			next = 1
		}
		data, err := ruleToJSON(after)
		if err == nil {
			err = s.versioning.CreateVersion(ctx, &RuleVersion{
				TenantID:  tenantID,
				RuleID:    ruleID,
				RuleData:  data,
				Version:   next,
				ChangedBy: getChangedBy(ctx),
			})
		}
		if err != nil {
			s.logger.WarnwCtx(ctx, "Failed to store rule version", "rule_id", ruleID, "error", err)
		} else {
			version = next
		}
	}

	id := ruleID
	entry := &AuditLog{
		TenantID:  tenantID,
		RuleID:    &id,
		Action:    action,
		OldValue:  ruleToMap(before),
		NewValue:  ruleToMap(after),
		ChangedBy: getChangedBy(ctx),
		IPAddress: getClientIP(ctx),
	}
	if err := s.versioning.CreateAuditLog(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write rule audit log", "rule_id", ruleID, "action", action, "error", err)
	}
	return version
}

func (s *service) recordReorder(ctx context.Context, tenantID string, priorities []RulePriority) {
	if s.versioning == nil {
		return
	}
	for _, p := range priorities {
		id := p.ID
		entry := &AuditLog{
			TenantID:  tenantID,
			RuleID:    &id,
			Action:    models.ActionReorder,
			NewValue:  map[string]interface{}{"priority": p.Priority},
			ChangedBy: getChangedBy(ctx),
			IPAddress: getClientIP(ctx),
		}
		if err := s.versioning.CreateAuditLog(ctx, entry); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to write rule audit log", "rule_id", id, "action", models.ActionReorder, "error", err)
		}
	}
}

func ruleToMap(rule *rules.Rule) map[string]interface{} {
	if rule == nil {
		return nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
