package management

import (
	"fmt"
	"strings"

	"tableflow/internal/rules"
	"tableflow/pkg/cel"
)

// ValidateRule checks rule structure and, when present, that the guard
// expression compiles.
func ValidateRule(rule rules.Rule, guards *cel.Evaluator) error {
	if err := rules.Validate(rule); err != nil {
		return err
	}
	if strings.TrimSpace(rule.Expression) == "" {
		return nil
	}
	if err := guards.ValidateExpression(rule.Expression); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

func ValidateReorder(req ReorderRequest) error {
	if len(req.Rules) == 0 {
		return fmt.Errorf("at least one rule is required")
	}
	seen := make(map[string]bool, len(req.Rules))
	for i, r := range req.Rules {
		if r.ID == "" {
			return fmt.Errorf("rules[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rules[%d]: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

func ValidateTestRequest(req TestRuleRequest) error {
	if req.TableNumber == "" && req.Context == nil {
		return fmt.Errorf("table_number or context is required")
	}
	return nil
}
