package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"tableflow/internal/logger"
	"tableflow/internal/notification"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/retry"
)

const tenant = "tenant-a"

var testNow = time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC)

// mockClock starts at now. Its AfterFunc callbacks run on their own
// goroutines, so assertions on their effects go through waitFor.
func mockClock(now time.Time) *clock.Mock {
	clk := clock.NewMock()
	clk.Set(now)
	return clk
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

type fakeRuleStore struct {
	mu    sync.Mutex
	rules []rules.Rule
	err   error
}

func (s *fakeRuleStore) FindActive(_ context.Context, tenantID string, trigger rules.TriggerEvent) ([]rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	out := make([]rules.Rule, 0)
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.TriggerEvent == trigger && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *fakeRuleStore) add(r rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

type fakeTableStore struct {
	mu        sync.Mutex
	tables    map[string]*tables.Table
	conflicts int
	saveErr   error
	saves     int
	// honourCtx makes reads and writes fail once ctx is done, like a
	// database driver would.
	honourCtx bool
}

func newFakeTableStore(ts ...*tables.Table) *fakeTableStore {
	s := &fakeTableStore{tables: make(map[string]*tables.Table)}
	for _, t := range ts {
		s.put(t)
	}
	return s
}

func (s *fakeTableStore) put(t *tables.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.TenantID+"/"+t.Number] = t.Clone()
}

func (s *fakeTableStore) remove(tenantID, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, tenantID+"/"+number)
}

func (s *fakeTableStore) get(tenantID, number string) *tables.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tenantID+"/"+number]
	if !ok {
		return nil
	}
	return t.Clone()
}

func (s *fakeTableStore) FindByTenantAndNumber(ctx context.Context, tenantID, number string) (*tables.Table, error) {
	if s.honourCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s.get(tenantID, number), nil
}

func (s *fakeTableStore) Save(ctx context.Context, table *tables.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.honourCtx && ctx.Err() != nil {
		return ctx.Err()
	}

	if s.saveErr != nil {
		return s.saveErr
	}
	key := table.TenantID + "/" + table.Number
	current, ok := s.tables[key]
	if !ok {
		return tables.ErrVersionConflict
	}
	if s.conflicts > 0 {
		s.conflicts--
		current.Version++
		return tables.ErrVersionConflict
	}
	if current.Version != table.Version {
		return tables.ErrVersionConflict
	}

	table.Version++
	s.tables[key] = table.Clone()
	s.saves++
	return nil
}

func (s *fakeTableStore) FindOccupiedWithSession(context.Context) ([]tables.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]tables.Table, 0)
	for _, t := range s.tables {
		if t.Status == "occupied" && t.SessionStartTime != nil {
			out = append(out, *t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type fakeOrderStore struct {
	orders map[string]*tables.Order
}

func (s *fakeOrderStore) FindByID(_ context.Context, tenantID, orderID string) (*tables.Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, nil
	}
	return o, nil
}

type fakeActivity struct {
	mu          sync.Mutex
	alerts      []tables.Alert
	assignments []tables.WaiterAssignment
	panicOn     bool
}

func (a *fakeActivity) CreateAlert(_ context.Context, alert *tables.Alert) error {
	if a.panicOn {
		panic("alert store exploded")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, *alert)
	return nil
}

func (a *fakeActivity) CreateWaiterAssignment(_ context.Context, assignment *tables.WaiterAssignment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assignments = append(a.assignments, *assignment)
	return nil
}

func (a *fakeActivity) ListAlerts(_ context.Context, tenantID, tableNumber string, _ int) ([]tables.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]tables.Alert, 0)
	for _, al := range a.alerts {
		if al.TenantID == tenantID && (tableNumber == "" || al.TableNumber == tableNumber) {
			out = append(out, al)
		}
	}
	return out, nil
}

type fakeSink struct {
	mu     sync.Mutex
	sent   []notification.Message
	err    error
	onSend func()
}

func (s *fakeSink) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	hook, err := s.onSend, s.err
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (s *fakeSink) messages() []notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Message(nil), s.sent...)
}

type emitted struct {
	Room    string
	Event   string
	Payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (b *fakeBroadcaster) Emit(_ context.Context, room, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{Room: room, Event: event, Payload: payload})
	return nil
}

func (b *fakeBroadcaster) byEvent(event string) []emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]emitted, 0)
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type collectingRecorder struct {
	mu      sync.Mutex
	results []EventResult
}

func (r *collectingRecorder) Record(_ context.Context, result EventResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *collectingRecorder) byTrigger(trigger rules.TriggerEvent) []EventResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventResult, 0)
	for _, res := range r.results {
		if res.Trigger == trigger {
			out = append(out, res)
		}
	}
	return out
}

type harness struct {
	engine   *Engine
	clock    *clock.Mock
	rules    *fakeRuleStore
	tables   *fakeTableStore
	orders   *fakeOrderStore
	activity *fakeActivity
	sink     *fakeSink
	bus      *fakeBroadcaster
	recorder *collectingRecorder
}

func newHarness(t *testing.T, ts ...*tables.Table) *harness {
	t.Helper()

	h := &harness{
		clock:    mockClock(testNow),
		rules:    &fakeRuleStore{},
		tables:   newFakeTableStore(ts...),
		orders:   &fakeOrderStore{orders: map[string]*tables.Order{}},
		activity: &fakeActivity{},
		sink:     &fakeSink{},
		bus:      &fakeBroadcaster{},
		recorder: &collectingRecorder{},
	}

	e, err := New(Dependencies{
		Rules:       h.rules,
		Tables:      h.tables,
		Orders:      h.orders,
		Activity:    h.activity,
		Notifier:    h.sink,
		Broadcaster: h.bus,
		Clock:       h.clock,
		Location:    time.UTC,
		Logger:      logger.NopLogger(),
	},
		WithRecorder(h.recorder),
		WithSavePolicy(retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}),
	)
	require.NoError(t, err)
	t.Cleanup(e.Stop)

	h.engine = e
	return h
}

// settle waits until the table's due timers have started, then stops the
// engine, which blocks until their callbacks return.
func (h *harness) settle(t *testing.T, table string) {
	t.Helper()
	waitFor(t, func() bool { return len(h.engine.PendingTimers(tenant, table)) == 0 })
	h.engine.Stop()
}

func (h *harness) alerts() []tables.Alert {
	out, _ := h.activity.ListAlerts(context.Background(), tenant, "", 0)
	return out
}

func (h *harness) process(trigger rules.TriggerEvent, table string, extra map[string]any) EventResult {
	return h.engine.ProcessEvent(context.Background(), NewEvent(tenant, trigger, table, extra))
}

func newTable(number, status string) *tables.Table {
	return &tables.Table{
		ID:       "id-" + number,
		TenantID: tenant,
		Number:   number,
		Type:     "regular",
		Status:   status,
		Capacity: 4,
		Location: tables.Location{Floor: 1, Section: "main"},
	}
}

func newRule(id string, trigger rules.TriggerEvent, priority int, conds []rules.Condition, actions ...rules.Action) rules.Rule {
	return rules.Rule{
		ID:             id,
		TenantID:       tenant,
		Name:           id,
		TriggerEvent:   trigger,
		Conditions:     conds,
		ConditionLogic: rules.LogicAll,
		Actions:        actions,
		Priority:       priority,
		IsActive:       true,
	}
}

func cond(field string, op rules.Operator, value any) rules.Condition {
	return rules.Condition{Field: field, Operator: op, Value: rules.MustValue(value)}
}

var errBoom = errors.New("boom")
