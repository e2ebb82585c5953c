package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/logger"
)

func receive(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case data := <-c.Send:
		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	default:
		t.Fatalf("client %s received nothing", c.ID)
		return Frame{}
	}
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "tenant:t1", TenantRoom("t1"))
	assert.Equal(t, "tenant:t1:role:manager", RoleRoom("t1", "manager"))
}

func TestHub_DeliverOnlyToRoomMembers(t *testing.T) {
	hub := NewHub(logger.NopLogger())

	manager := NewClient("c1", "t1", 4)
	waiter := NewClient("c2", "t1", 4)
	other := NewClient("c3", "t2", 4)
	for _, c := range []*Client{manager, waiter, other} {
		hub.Register(c)
		hub.Join(c, TenantRoom(c.TenantID))
	}
	hub.Join(manager, RoleRoom("t1", "manager"))

	broadcaster := NewLocalBroadcaster(hub)
	require.NoError(t, broadcaster.Emit(context.Background(), RoleRoom("t1", "manager"), "table-alert", map[string]any{"table_number": "5"}))

	frame := receive(t, manager)
	assert.Equal(t, "table-alert", frame.Event)
	assert.JSONEq(t, `{"table_number":"5"}`, string(frame.Payload))
	assert.Empty(t, waiter.Send)
	assert.Empty(t, other.Send)

	require.NoError(t, broadcaster.Emit(context.Background(), TenantRoom("t1"), "table-status-update", map[string]any{"new_status": "cleaning"}))
	assert.Equal(t, "table-status-update", receive(t, manager).Event)
	assert.Equal(t, "table-status-update", receive(t, waiter).Event)
	assert.Empty(t, other.Send)
}

func TestHub_UnregisterLeavesRoomsAndClosesChannel(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	c := NewClient("c1", "t1", 1)
	hub.Register(c)
	hub.Join(c, TenantRoom("t1"))
	hub.Join(c, RoleRoom("t1", "host"))
	assert.Equal(t, 1, hub.RoomSize(TenantRoom("t1")))

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Zero(t, hub.ClientCount())
	assert.Zero(t, hub.RoomSize(TenantRoom("t1")))
	assert.Zero(t, hub.RoomSize(RoleRoom("t1", "host")))
	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_SlowClientDropsFrames(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	c := NewClient("c1", "t1", 1)
	hub.Register(c)
	hub.Join(c, TenantRoom("t1"))

	frame, err := NewFrame(TenantRoom("t1"), "e", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Deliver(frame))
	assert.Zero(t, hub.Deliver(frame))
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	c := NewClient("c1", "t1", 1)
	hub.Join(c, TenantRoom("t1"))
	assert.Zero(t, hub.RoomSize(TenantRoom("t1")))
}

func TestLocalBroadcaster_RejectsUnencodablePayload(t *testing.T) {
	b := NewLocalBroadcaster(NewHub(logger.NopLogger()))
	assert.Error(t, b.Emit(context.Background(), "room", "e", make(chan int)))
}

func TestParseControl(t *testing.T) {
	msg, ok := ParseControl(`{"action":"join","role":"manager"}`)
	require.True(t, ok)
	assert.Equal(t, "manager", msg.Role)

	_, ok = ParseControl(`{"action":"join"}`)
	assert.False(t, ok)
	_, ok = ParseControl(`{"action":"subscribe","role":"x"}`)
	assert.False(t, ok)
	_, ok = ParseControl(`not json`)
	assert.False(t, ok)
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []string{"manager", "host"}, splitRoles(" manager, ,host"))
	assert.Empty(t, splitRoles(""))
}

func TestServerControlJoinsOwnTenantRoomsOnly(t *testing.T) {
	hub := NewHub(logger.NopLogger())
	srv := NewServer(hub, "", logger.NopLogger())
	c := NewClient("c1", "t1", 1)
	hub.Register(c)

	srv.control(c, `{"action":"join","role":"manager"}`)
	assert.Equal(t, 1, hub.RoomSize(RoleRoom("t1", "manager")))

	srv.control(c, `{"action":"leave","role":"manager"}`)
	assert.Zero(t, hub.RoomSize(RoleRoom("t1", "manager")))
}
