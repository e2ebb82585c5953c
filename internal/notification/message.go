package notification

import (
	"context"
	"fmt"
	"slices"

	"tableflow/internal/constants"
)

// Channels accepted by Dispatcher.Send.
var Channels = []string{
	constants.ChannelEmail,
	constants.ChannelSMS,
	constants.ChannelPush,
	constants.ChannelSocket,
}

type Message struct {
	TenantID   string         `json:"tenant_id"`
	Channel    string         `json:"channel"`
	Recipients []string       `json:"recipients"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
}

func (m Message) Validate() error {
	if m.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if !slices.Contains(Channels, m.Channel) {
		return fmt.Errorf("unsupported channel %q", m.Channel)
	}
	if len(m.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return nil
}

// Sink delivers notifications. Retry and backoff are the sink's concern.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}
