package notification

import (
	"context"
	"time"

	"tableflow/internal/constants"
	"tableflow/internal/realtime"
)

// SocketSender pushes the message to each recipient's role room.
type SocketSender struct {
	broadcaster realtime.Broadcaster
}

func NewSocketSender(b realtime.Broadcaster) *SocketSender {
	return &SocketSender{broadcaster: b}
}

func (s *SocketSender) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"message":   msg.Message,
		"data":      msg.Data,
		"timestamp": time.Now().UTC(),
	}
	for _, role := range msg.Recipients {
		if err := s.broadcaster.Emit(ctx, realtime.RoleRoom(msg.TenantID, role), constants.RealtimeEventNotification, payload); err != nil {
			return err
		}
	}
	return nil
}
