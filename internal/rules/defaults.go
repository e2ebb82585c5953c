package rules

// Defaults returns the system rules seeded for a new tenant.
func Defaults(tenantID string) []Rule {
	return []Rule{
		{
			TenantID:       tenantID,
			Name:           "Auto-occupy on order",
			Description:    "Marks an available table as occupied when an order is placed",
			TriggerEvent:   TriggerOrderPlaced,
			ConditionLogic: LogicAll,
			Conditions: []Condition{
				{Field: "table.status", Operator: OpEquals, Value: StringValue("available")},
			},
			Actions: []Action{
				NewChangeStatus(ChangeStatusConfig{NewStatus: "occupied", Reason: "Order placed"}),
			},
			Priority:  10,
			IsActive:  true,
			IsDefault: true,
		},
		{
			TenantID:       tenantID,
			Name:           "Clean after payment",
			Description:    "Moves a paid table to cleaning after a short delay",
			TriggerEvent:   TriggerPaymentCompleted,
			ConditionLogic: LogicAll,
			Conditions: []Condition{
				{Field: "table.status", Operator: OpEquals, Value: StringValue("occupied")},
			},
			Actions: []Action{
				NewChangeStatus(ChangeStatusConfig{NewStatus: "cleaning", Reason: "Payment completed", DelayMs: 120000}),
			},
			Priority:  10,
			IsActive:  true,
			IsDefault: true,
		},
		{
			TenantID:       tenantID,
			Name:           "Long session alert",
			Description:    "Notifies managers when a table has been occupied for over two hours",
			TriggerEvent:   TriggerSessionCheck,
			ConditionLogic: LogicAll,
			Conditions: []Condition{
				{Field: "session.duration", Operator: OpGreaterThan, Value: NumberValue(7200000)},
			},
			Actions: []Action{
				NewNotification(NotificationConfig{
					Channel:    "socket",
					Recipients: []string{"manager"},
					Message:    "Table {{table.number}} has been occupied for over 2 hours",
				}),
			},
			Priority:  5,
			IsActive:  true,
			IsDefault: true,
		},
		{
			TenantID:       tenantID,
			Name:           "Cleaning timeout",
			Description:    "Starts a timer when a table enters cleaning",
			TriggerEvent:   TriggerStatusChanged,
			ConditionLogic: LogicAll,
			Conditions: []Condition{
				{Field: "status.current", Operator: OpEquals, Value: StringValue("cleaning")},
			},
			Actions: []Action{
				NewStartTimer(TimerConfig{DurationMinutes: 15}),
			},
			Priority:  1,
			IsActive:  true,
			IsDefault: true,
		},
		{
			TenantID:       tenantID,
			Name:           "Cleaning overdue alert",
			Description:    "Raises an alert when a table is still cleaning after the timeout",
			TriggerEvent:   TriggerTimerExpired,
			ConditionLogic: LogicAll,
			Conditions: []Condition{
				{Field: "table.status", Operator: OpEquals, Value: StringValue("cleaning")},
			},
			Actions: []Action{
				NewAlert(AlertConfig{
					Level:   "warning",
					Message: "Table {{table.number}} is still being cleaned",
					Roles:   []string{"manager", "waiter"},
				}),
			},
			Priority:  1,
			IsActive:  true,
			IsDefault: true,
		},
	}
}
