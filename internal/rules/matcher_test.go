package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	rules []Rule
	err   error
	calls int
}

func (s *stubStore) FindActive(_ context.Context, tenantID string, trigger TriggerEvent) ([]Rule, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.TriggerEvent == trigger && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// 2024-03-04 is a Monday.
var monday = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func mockClock(now time.Time) *clock.Mock {
	clk := clock.NewMock()
	clk.Set(now)
	return clk
}

func TestInSchedule(t *testing.T) {
	weekdayHours := &Schedule{Enabled: true, Days: []string{"monday"}, StartTime: "09:00", EndTime: "17:00"}

	tests := []struct {
		name     string
		schedule *Schedule
		now      time.Time
		want     bool
	}{
		{"nil schedule", nil, monday, true},
		{"disabled schedule", &Schedule{Enabled: false, Days: []string{"sunday"}}, monday, true},
		{"inside window", weekdayHours, monday, true},
		{"start bound inclusive", weekdayHours, monday.Add(-3 * time.Hour), true},
		{"end bound inclusive", weekdayHours, monday.Add(5*time.Hour + 59*time.Second), true},
		{"before window", weekdayHours, monday.Add(-4 * time.Hour), false},
		{"after window", weekdayHours, monday.Add(6 * time.Hour), false},
		{"wrong day", weekdayHours, monday.AddDate(0, 0, 1), false},
		{"day match is case insensitive", &Schedule{Enabled: true, Days: []string{"Monday"}}, monday, true},
		{"open start", &Schedule{Enabled: true, Days: []string{"monday"}, EndTime: "13:00"}, monday.Add(-11 * time.Hour), true},
		{"open end", &Schedule{Enabled: true, Days: []string{"monday"}, StartTime: "11:00"}, monday.Add(11 * time.Hour), true},
		{"unparseable bound excludes", &Schedule{Enabled: true, Days: []string{"monday"}, StartTime: "noon"}, monday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InSchedule(tt.schedule, tt.now))
		})
	}
}

func TestAppliesToTable(t *testing.T) {
	regular := TableView{Number: "T1", Type: "regular", Floor: 1, Section: "main"}
	t5 := TableView{Number: "T5", Type: "regular", Floor: 1, Section: "main"}

	tests := []struct {
		name      string
		appliesTo *AppliesTo
		table     TableView
		want      bool
	}{
		{"nil applies to all", nil, regular, true},
		{"empty applies to all", &AppliesTo{}, regular, true},
		{"type mismatch", &AppliesTo{TableTypes: []string{"vip"}}, regular, false},
		{"type match", &AppliesTo{TableTypes: []string{"vip", "regular"}}, regular, true},
		{"specific table overrides dimensions", &AppliesTo{TableTypes: []string{"vip"}, Floors: []int{3}, SpecificTables: []string{"T5"}}, t5, true},
		{"specific tables alone are an allow-list", &AppliesTo{SpecificTables: []string{"T5"}}, regular, false},
		{"all dimensions must match", &AppliesTo{TableTypes: []string{"regular"}, Floors: []int{2}}, regular, false},
		{"section match", &AppliesTo{Floors: []int{1}, Sections: []string{"main"}}, regular, true},
		{"dimensions apply when not listed", &AppliesTo{TableTypes: []string{"regular"}, SpecificTables: []string{"T9"}}, regular, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppliesToTable(tt.appliesTo, tt.table))
		})
	}
}

func TestMatcher_GetApplicableRules(t *testing.T) {
	store := &stubStore{rules: []Rule{
		{ID: "high", TenantID: "t1", TriggerEvent: TriggerOrderPlaced, Priority: 10, IsActive: true},
		{ID: "vip-only", TenantID: "t1", TriggerEvent: TriggerOrderPlaced, Priority: 8, IsActive: true,
			AppliesTo: &AppliesTo{TableTypes: []string{"vip"}}},
		{ID: "tuesday", TenantID: "t1", TriggerEvent: TriggerOrderPlaced, Priority: 7, IsActive: true,
			Schedule: &Schedule{Enabled: true, Days: []string{"tuesday"}}},
		{ID: "low", TenantID: "t1", TriggerEvent: TriggerOrderPlaced, Priority: 5, IsActive: true},
		{ID: "inactive", TenantID: "t1", TriggerEvent: TriggerOrderPlaced, Priority: 9, IsActive: false},
		{ID: "other-tenant", TenantID: "t2", TriggerEvent: TriggerOrderPlaced, Priority: 20, IsActive: true},
		{ID: "other-trigger", TenantID: "t1", TriggerEvent: TriggerPaymentCompleted, Priority: 20, IsActive: true},
	}}

	m := NewMatcher(store, mockClock(monday), time.UTC)
	got, err := m.GetApplicableRules(context.Background(), "t1", TriggerOrderPlaced, TableView{Number: "T1", Type: "regular"})
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"high", "low"}, ids)
}

func TestMatcher_RereadsStoreEveryCall(t *testing.T) {
	store := &stubStore{rules: []Rule{
		{ID: "r1", TenantID: "t1", TriggerEvent: TriggerManual, IsActive: true},
	}}
	m := NewMatcher(store, mockClock(monday), time.UTC)
	ctx := context.Background()

	got, err := m.GetApplicableRules(ctx, "t1", TriggerManual, TableView{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	store.rules[0].IsActive = false
	got, err = m.GetApplicableRules(ctx, "t1", TriggerManual, TableView{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, store.calls)
}

func TestMatcher_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	store := &stubStore{rules: []Rule{
		{ID: "evening", TenantID: "t1", TriggerEvent: TriggerManual, IsActive: true,
			Schedule: &Schedule{Enabled: true, Days: []string{"monday"}, StartTime: "21:00", EndTime: "23:00"}},
	}}

	// 12:00 UTC is 22:00 in UTC+10.
	m := NewMatcher(store, mockClock(monday), loc)
	got, err := m.GetApplicableRules(context.Background(), "t1", TriggerManual, TableView{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMatcher_StoreError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	m := NewMatcher(store, mockClock(monday), time.UTC)

	_, err := m.GetApplicableRules(context.Background(), "t1", TriggerManual, TableView{})
	assert.ErrorContains(t, err, "connection refused")
}
