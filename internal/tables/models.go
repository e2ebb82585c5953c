package tables

import (
	"errors"
	"time"

	"tableflow/internal/constants"
)

// ErrVersionConflict is returned by Save when the stored table changed
// since it was read.
var ErrVersionConflict = errors.New("table version conflict")

type Location struct {
	Floor   int    `json:"floor" bson:"floor"`
	Section string `json:"section" bson:"section"`
}

type Table struct {
	ID                 string     `json:"id" bson:"_id,omitempty"`
	TenantID           string     `json:"tenant_id" bson:"tenant_id"`
	Number             string     `json:"number" bson:"number"`
	Type               string     `json:"type" bson:"type"`
	Status             string     `json:"status" bson:"status"`
	Capacity           int        `json:"capacity" bson:"capacity"`
	Location           Location   `json:"location" bson:"location"`
	Features           []string   `json:"features,omitempty" bson:"features,omitempty"`
	CurrentOrder       string     `json:"current_order,omitempty" bson:"current_order,omitempty"`
	SessionStartTime   *time.Time `json:"session_start_time,omitempty" bson:"session_start_time,omitempty"`
	StatusChangedAt    *time.Time `json:"status_changed_at,omitempty" bson:"status_changed_at,omitempty"`
	StatusChangeReason string     `json:"status_change_reason,omitempty" bson:"status_change_reason,omitempty"`
	Version            int64      `json:"version" bson:"version"`
}

// ApplyStatus sets the status fields and returns the previous status.
// Occupying a table opens a session; making it available closes it.
func (t *Table) ApplyStatus(status, reason string, now time.Time) string {
	old := t.Status
	t.Status = status
	t.StatusChangeReason = reason
	changedAt := now
	t.StatusChangedAt = &changedAt

	switch status {
	case constants.TableStatusOccupied:
		if t.SessionStartTime == nil {
			start := now
			t.SessionStartTime = &start
		}
	case constants.TableStatusAvailable:
		t.SessionStartTime = nil
		t.CurrentOrder = ""
	}

	return old
}

func (t *Table) Clone() *Table {
	c := *t
	if t.Features != nil {
		c.Features = append([]string(nil), t.Features...)
	}
	if t.SessionStartTime != nil {
		s := *t.SessionStartTime
		c.SessionStartTime = &s
	}
	if t.StatusChangedAt != nil {
		s := *t.StatusChangedAt
		c.StatusChangedAt = &s
	}
	return &c
}

type Order struct {
	ID            string  `json:"id" bson:"_id"`
	TenantID      string  `json:"tenant_id" bson:"tenant_id"`
	TableNumber   string  `json:"table_number" bson:"table_number"`
	Amount        float64 `json:"amount" bson:"amount"`
	Status        string  `json:"status" bson:"status"`
	PaymentStatus string  `json:"payment_status" bson:"payment_status"`
}

type Alert struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	TenantID     string    `json:"tenant_id" bson:"tenant_id"`
	TableNumber  string    `json:"table_number" bson:"table_number"`
	RuleID       string    `json:"rule_id" bson:"rule_id"`
	Level        string    `json:"level" bson:"level"`
	Message      string    `json:"message" bson:"message"`
	Roles        []string  `json:"roles,omitempty" bson:"roles,omitempty"`
	Acknowledged bool      `json:"acknowledged" bson:"acknowledged"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

type WaiterAssignment struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	TenantID    string    `json:"tenant_id" bson:"tenant_id"`
	TableNumber string    `json:"table_number" bson:"table_number"`
	WaiterID    string    `json:"waiter_id,omitempty" bson:"waiter_id,omitempty"`
	RuleID      string    `json:"rule_id" bson:"rule_id"`
	Note        string    `json:"note,omitempty" bson:"note,omitempty"`
	AssignedAt  time.Time `json:"assigned_at" bson:"assigned_at"`
}
