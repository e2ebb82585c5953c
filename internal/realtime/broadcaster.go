package realtime

import (
	"context"
)

// Broadcaster fans events out to room subscribers. Delivery is best effort.
type Broadcaster interface {
	Emit(ctx context.Context, room, event string, payload any) error
}

func TenantRoom(tenantID string) string {
	return "tenant:" + tenantID
}

// RoleRoom scopes a room to one role inside a tenant.
func RoleRoom(tenantID, role string) string {
	return "tenant:" + tenantID + ":role:" + role
}

type nopBroadcaster struct{}

func NopBroadcaster() Broadcaster {
	return nopBroadcaster{}
}

func (nopBroadcaster) Emit(context.Context, string, string, any) error {
	return nil
}
