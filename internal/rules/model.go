package rules

import (
	"time"
)

type TriggerEvent string

const (
	TriggerOrderPlaced      TriggerEvent = "order_placed"
	TriggerPaymentCompleted TriggerEvent = "payment_completed"
	TriggerTableReserved    TriggerEvent = "table_reserved"
	TriggerStatusChanged    TriggerEvent = "status_changed"
	TriggerSessionCheck     TriggerEvent = "session_check"
	TriggerManual           TriggerEvent = "manual_trigger"
	TriggerTimerExpired     TriggerEvent = "timer_expired"
)

var triggerEvents = map[TriggerEvent]struct{}{
	TriggerOrderPlaced:      {},
	TriggerPaymentCompleted: {},
	TriggerTableReserved:    {},
	TriggerStatusChanged:    {},
	TriggerSessionCheck:     {},
	TriggerManual:           {},
	TriggerTimerExpired:     {},
}

func (t TriggerEvent) Valid() bool {
	_, ok := triggerEvents[t]
	return ok
}

type ConditionLogic string

const (
	LogicAll ConditionLogic = "all"
	LogicAny ConditionLogic = "any"
)

type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equals"
	OpLessThanOrEqual    Operator = "less_than_or_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpExists             Operator = "exists"
	OpNotExists          Operator = "not_exists"
)

var operators = map[Operator]struct{}{
	OpEquals: {}, OpNotEquals: {},
	OpGreaterThan: {}, OpLessThan: {},
	OpGreaterThanOrEqual: {}, OpLessThanOrEqual: {},
	OpContains: {}, OpNotContains: {},
	OpExists: {}, OpNotExists: {},
}

func (o Operator) Valid() bool {
	_, ok := operators[o]
	return ok
}

type Rule struct {
	ID             string         `json:"id" bson:"_id,omitempty"`
	TenantID       string         `json:"tenant_id" bson:"tenant_id"`
	Name           string         `json:"name" bson:"name"`
	Description    string         `json:"description,omitempty" bson:"description,omitempty"`
	TriggerEvent   TriggerEvent   `json:"trigger_event" bson:"trigger_event"`
	Conditions     []Condition    `json:"conditions" bson:"conditions"`
	ConditionLogic ConditionLogic `json:"condition_logic" bson:"condition_logic"`
	// Expression is an optional CEL guard evaluated after Conditions.
	Expression string     `json:"expression,omitempty" bson:"expression,omitempty"`
	Actions    []Action   `json:"actions" bson:"actions"`
	Priority   int        `json:"priority" bson:"priority"`
	IsActive   bool       `json:"is_active" bson:"is_active"`
	AppliesTo  *AppliesTo `json:"applies_to,omitempty" bson:"applies_to,omitempty"`
	Schedule   *Schedule  `json:"schedule,omitempty" bson:"schedule,omitempty"`
	IsDefault  bool       `json:"is_default" bson:"is_default"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

type Condition struct {
	Field    string   `json:"field" bson:"field"`
	Operator Operator `json:"operator" bson:"operator"`
	Value    Value    `json:"value" bson:"value"`
}

type AppliesTo struct {
	TableTypes     []string `json:"table_types,omitempty" bson:"table_types,omitempty"`
	Floors         []int    `json:"floors,omitempty" bson:"floors,omitempty"`
	Sections       []string `json:"sections,omitempty" bson:"sections,omitempty"`
	SpecificTables []string `json:"specific_tables,omitempty" bson:"specific_tables,omitempty"`
}

func (a *AppliesTo) IsEmpty() bool {
	return a == nil ||
		len(a.TableTypes) == 0 && len(a.Floors) == 0 && len(a.Sections) == 0 && len(a.SpecificTables) == 0
}

// Schedule restricts a rule to a weekly window. Days are lowercase English
// weekday names; times are HH:mm in the engine timezone.
type Schedule struct {
	Enabled   bool     `json:"enabled" bson:"enabled"`
	Days      []string `json:"days,omitempty" bson:"days,omitempty"`
	StartTime string   `json:"start_time,omitempty" bson:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty" bson:"end_time,omitempty"`
}

// TableView is the subset of a table the matcher needs. It keeps this
// package independent of the table store.
type TableView struct {
	Number  string
	Type    string
	Floor   int
	Section string
}
