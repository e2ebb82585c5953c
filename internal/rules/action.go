package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

type ActionType string

const (
	ActionChangeStatus     ActionType = "change_status"
	ActionSendNotification ActionType = "send_notification"
	ActionAssignWaiter     ActionType = "assign_waiter"
	ActionCreateAlert      ActionType = "create_alert"
	ActionStartTimer       ActionType = "start_timer"
	ActionLogEvent         ActionType = "log_event"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionChangeStatus, ActionSendNotification, ActionAssignWaiter,
		ActionCreateAlert, ActionStartTimer, ActionLogEvent:
		return true
	}
	return false
}

// Action is a tagged union: exactly the config matching Type is set.
type Action struct {
	Type         ActionType          `bson:"type"`
	ChangeStatus *ChangeStatusConfig `bson:"change_status,omitempty"`
	Notification *NotificationConfig `bson:"notification,omitempty"`
	AssignWaiter *AssignWaiterConfig `bson:"assign_waiter,omitempty"`
	Alert        *AlertConfig        `bson:"alert,omitempty"`
	Timer        *TimerConfig        `bson:"timer,omitempty"`
	Log          *LogConfig          `bson:"log,omitempty"`
}

type ChangeStatusConfig struct {
	NewStatus string `json:"new_status" bson:"new_status"`
	Reason    string `json:"reason,omitempty" bson:"reason,omitempty"`
	DelayMs   int64  `json:"delay_ms,omitempty" bson:"delay_ms,omitempty"`
}

func (c *ChangeStatusConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

type NotificationConfig struct {
	Channel    string   `json:"channel" bson:"channel"`
	Recipients []string `json:"recipients" bson:"recipients"`
	// Message may reference {{table.number}}, {{table.status}} and {{rule.name}}.
	Message string `json:"message" bson:"message"`
}

type AssignWaiterConfig struct {
	WaiterID string `json:"waiter_id,omitempty" bson:"waiter_id,omitempty"`
	Note     string `json:"note,omitempty" bson:"note,omitempty"`
}

type AlertConfig struct {
	Level   string   `json:"level" bson:"level"`
	Message string   `json:"message" bson:"message"`
	Roles   []string `json:"roles,omitempty" bson:"roles,omitempty"`
}

type TimerConfig struct {
	DurationMinutes float64 `json:"duration_minutes" bson:"duration_minutes"`
}

func (c *TimerConfig) Duration() time.Duration {
	return time.Duration(c.DurationMinutes * float64(time.Minute))
}

type LogConfig struct {
	Level   string `json:"level,omitempty" bson:"level,omitempty"`
	Message string `json:"message" bson:"message"`
}

func NewChangeStatus(cfg ChangeStatusConfig) Action {
	return Action{Type: ActionChangeStatus, ChangeStatus: &cfg}
}

func NewNotification(cfg NotificationConfig) Action {
	return Action{Type: ActionSendNotification, Notification: &cfg}
}

func NewAssignWaiter(cfg AssignWaiterConfig) Action {
	return Action{Type: ActionAssignWaiter, AssignWaiter: &cfg}
}

func NewAlert(cfg AlertConfig) Action {
	return Action{Type: ActionCreateAlert, Alert: &cfg}
}

func NewStartTimer(cfg TimerConfig) Action {
	return Action{Type: ActionStartTimer, Timer: &cfg}
}

func NewLogEvent(cfg LogConfig) Action {
	return Action{Type: ActionLogEvent, Log: &cfg}
}

// Config returns the variant selected by Type, or nil when it is missing.
func (a Action) Config() any {
	switch a.Type {
	case ActionChangeStatus:
		if a.ChangeStatus != nil {
			return a.ChangeStatus
		}
	case ActionSendNotification:
		if a.Notification != nil {
			return a.Notification
		}
	case ActionAssignWaiter:
		if a.AssignWaiter != nil {
			return a.AssignWaiter
		}
	case ActionCreateAlert:
		if a.Alert != nil {
			return a.Alert
		}
	case ActionStartTimer:
		if a.Timer != nil {
			return a.Timer
		}
	case ActionLogEvent:
		if a.Log != nil {
			return a.Log
		}
	}
	return nil
}

type actionWire struct {
	Type   ActionType      `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	wire := struct {
		Type   ActionType `json:"type"`
		Config any        `json:"config,omitempty"`
	}{Type: a.Type, Config: a.Config()}
	return json.Marshal(wire)
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var wire actionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := Action{Type: wire.Type}
	var target any
	switch wire.Type {
	case ActionChangeStatus:
		out.ChangeStatus = &ChangeStatusConfig{}
		target = out.ChangeStatus
	case ActionSendNotification:
		out.Notification = &NotificationConfig{}
		target = out.Notification
	case ActionAssignWaiter:
		out.AssignWaiter = &AssignWaiterConfig{}
		target = out.AssignWaiter
	case ActionCreateAlert:
		out.Alert = &AlertConfig{}
		target = out.Alert
	case ActionStartTimer:
		out.Timer = &TimerConfig{}
		target = out.Timer
	case ActionLogEvent:
		out.Log = &LogConfig{}
		target = out.Log
	default:
		return fmt.Errorf("unknown action type %q", wire.Type)
	}

	if len(wire.Config) > 0 && string(wire.Config) != "null" {
		if err := json.Unmarshal(wire.Config, target); err != nil {
			return fmt.Errorf("invalid config for action %s: %w", wire.Type, err)
		}
	}

	*a = out
	return nil
}
