package rules

import (
	"fmt"
	"strings"
)

var validDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

var validChannels = map[string]bool{
	"email":  true,
	"sms":    true,
	"push":   true,
	"socket": true,
}

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the structure of a rule. Expression syntax is checked
// separately by the CEL guard.
func Validate(rule Rule) error {
	if strings.TrimSpace(rule.TenantID) == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !rule.TriggerEvent.Valid() {
		return fmt.Errorf("invalid trigger_event: %q", rule.TriggerEvent)
	}
	if rule.ConditionLogic != LogicAll && rule.ConditionLogic != LogicAny {
		return fmt.Errorf("invalid condition_logic: %q. Allowed: all, any", rule.ConditionLogic)
	}

	for i, c := range rule.Conditions {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}

	if len(rule.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for i, a := range rule.Actions {
		if err := ValidateAction(a); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}

	if err := validateSchedule(rule.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	return nil
}

func validateCondition(c Condition) error {
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("field is required")
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("invalid operator: %q", c.Operator)
	}
	return nil
}

func ValidateAction(a Action) error {
	if !a.Type.Valid() {
		return fmt.Errorf("invalid action type: %q", a.Type)
	}
	if a.Config() == nil {
		return fmt.Errorf("config is required for %s", a.Type)
	}

	switch a.Type {
	case ActionChangeStatus:
		if a.ChangeStatus.NewStatus == "" {
			return fmt.Errorf("new_status is required")
		}
		if a.ChangeStatus.DelayMs < 0 {
			return fmt.Errorf("delay_ms must be non-negative")
		}
	case ActionSendNotification:
		if !validChannels[a.Notification.Channel] {
			return fmt.Errorf("invalid channel: %q. Allowed: email, sms, push, socket", a.Notification.Channel)
		}
		if len(a.Notification.Recipients) == 0 {
			return fmt.Errorf("recipients are required")
		}
		if a.Notification.Message == "" {
			return fmt.Errorf("message is required")
		}
	case ActionCreateAlert:
		if a.Alert.Message == "" {
			return fmt.Errorf("message is required")
		}
	case ActionStartTimer:
		if a.Timer.DurationMinutes <= 0 {
			return fmt.Errorf("duration_minutes must be positive")
		}
	case ActionLogEvent:
		if !validLogLevels[a.Log.Level] {
			return fmt.Errorf("invalid log level: %q", a.Log.Level)
		}
	}
	return nil
}

func validateSchedule(s *Schedule) error {
	if s == nil || !s.Enabled {
		return nil
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("days are required when enabled")
	}
	for _, d := range s.Days {
		if !validDays[strings.ToLower(d)] {
			return fmt.Errorf("invalid day: %q", d)
		}
	}

	start, end := -1, -1
	var err error
	if s.StartTime != "" {
		if start, err = ParseClock(s.StartTime); err != nil {
			return err
		}
	}
	if s.EndTime != "" {
		if end, err = ParseClock(s.EndTime); err != nil {
			return err
		}
	}
	if start >= 0 && end >= 0 && start > end {
		return fmt.Errorf("start_time %s is after end_time %s", s.StartTime, s.EndTime)
	}
	return nil
}
