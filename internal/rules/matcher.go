package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Store is the read side of the rule repository used on the event path.
type Store interface {
	// FindActive returns active rules for a tenant and trigger, ordered by
	// priority descending and creation time ascending.
	FindActive(ctx context.Context, tenantID string, trigger TriggerEvent) ([]Rule, error)
}

type Matcher struct {
	store    Store
	clock    clock.Clock
	location *time.Location
}

func NewMatcher(store Store, clk clock.Clock, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{store: store, clock: clk, location: loc}
}

// GetApplicableRules loads candidate rules from the store on every call and
// keeps those whose schedule and table scope admit the given table.
func (m *Matcher) GetApplicableRules(ctx context.Context, tenantID string, trigger TriggerEvent, table TableView) ([]Rule, error) {
	candidates, err := m.store.FindActive(ctx, tenantID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	now := m.clock.Now().In(m.location)
	applicable := make([]Rule, 0, len(candidates))
	for _, rule := range candidates {
		if !rule.IsActive || rule.TenantID != tenantID {
			continue
		}
		if !InSchedule(rule.Schedule, now) {
			continue
		}
		if !AppliesToTable(rule.AppliesTo, table) {
			continue
		}
		applicable = append(applicable, rule)
	}

	return applicable, nil
}

// InSchedule reports whether now falls inside an enabled schedule window.
// Bounds are inclusive at minute granularity; an empty bound is unlimited.
func InSchedule(s *Schedule, now time.Time) bool {
	if s == nil || !s.Enabled {
		return true
	}

	day := strings.ToLower(now.Weekday().String())
	if !slices.ContainsFunc(s.Days, func(d string) bool { return strings.EqualFold(d, day) }) {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if s.StartTime != "" {
		start, err := ParseClock(s.StartTime)
		if err != nil || minute < start {
			return false
		}
	}
	if s.EndTime != "" {
		end, err := ParseClock(s.EndTime)
		if err != nil || minute > end {
			return false
		}
	}
	return true
}

// AppliesToTable implements the table scope filter. A listed table number
// always applies. When specific tables are the only constraint they act as
// an allow-list; otherwise type, floor and section must each match, with an
// empty list meaning no constraint.
func AppliesToTable(a *AppliesTo, table TableView) bool {
	if a.IsEmpty() {
		return true
	}

	if slices.Contains(a.SpecificTables, table.Number) {
		return true
	}

	dimensional := len(a.TableTypes) > 0 || len(a.Floors) > 0 || len(a.Sections) > 0
	if !dimensional {
		return false
	}

	if len(a.TableTypes) > 0 && !slices.Contains(a.TableTypes, table.Type) {
		return false
	}
	if len(a.Floors) > 0 && !slices.Contains(a.Floors, table.Floor) {
		return false
	}
	if len(a.Sections) > 0 && !slices.Contains(a.Sections, table.Section) {
		return false
	}
	return true
}

// ParseClock converts HH:mm into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:mm: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
