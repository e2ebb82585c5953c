package notification

import (
	"context"
	"fmt"
	"time"

	"tableflow/internal/config"
	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/internal/realtime"
	"tableflow/pkg/circuitbreaker"
	"tableflow/pkg/metrics"
	"tableflow/pkg/retry"
)

// Dispatcher is the Sink the engine sends through. Each channel gets its own
// circuit breaker when breakers are enabled. Transient failures are retried
// with backoff.
type Dispatcher struct {
	senders  map[string]ChannelSender
	breakers map[string]*circuitbreaker.Breaker
	cbConfig config.CircuitBreakerConfig
	policy   retry.Policy
	logger   logger.Logger
}

func NewDispatcher(policy retry.Policy, cbConfig config.CircuitBreakerConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		senders:  make(map[string]ChannelSender),
		breakers: make(map[string]*circuitbreaker.Breaker),
		cbConfig: cbConfig,
		policy:   policy,
		logger:   log,
	}
}

// NewDispatcherFromConfig registers the socket channel plus every enabled
// external channel.
func NewDispatcherFromConfig(cfg config.NotificationConfig, cbConfig config.CircuitBreakerConfig, broadcaster realtime.Broadcaster, log logger.Logger) *Dispatcher {
	d := NewDispatcher(RetryPolicy(cfg.Retry), cbConfig, log)
	directory := Directory(cfg.Directory)

	d.Register(constants.ChannelSocket, NewSocketSender(broadcaster))
	if cfg.SMTP.Enabled {
		d.Register(constants.ChannelEmail, NewEmailSender(cfg.SMTP, directory))
	}
	if cfg.SMS.Enabled {
		d.Register(constants.ChannelSMS, NewWebhookSender(cfg.SMS, directory))
	}
	if cfg.Push.Enabled {
		d.Register(constants.ChannelPush, NewWebhookSender(cfg.Push, directory))
	}
	return d
}

// RetryPolicy keeps notification retries short since they run inside event
// processing.
func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
	}.Override(cfg)
}

func (d *Dispatcher) Register(channel string, sender ChannelSender) {
	d.senders[channel] = sender
	if d.cbConfig.Enabled {
		d.breakers[channel] = circuitbreaker.New("notification-"+channel, d.cbConfig)
	}
}

func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.senders))
	for _, ch := range Channels {
		if _, ok := d.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNotification(msg.Channel, metrics.StatusLabel(err), time.Since(start))
	}()

	if err := msg.Validate(); err != nil {
		return err
	}
	sender, ok := d.senders[msg.Channel]
	if !ok {
		return fmt.Errorf("notification channel %s is not configured", msg.Channel)
	}
	breaker := d.breakers[msg.Channel]

	err = retry.RetryWithCallback(ctx, d.policy, func() error {
		if breaker == nil {
			return sender.Send(ctx, msg)
		}
		sendErr := breaker.Do(ctx, func(ctx context.Context) error {
			return sender.Send(ctx, msg)
		})
		if circuitbreaker.IsRejected(sendErr) {
			return retry.NewFatalError(sendErr)
		}
		return sendErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		d.logger.WarnwCtx(ctx, "Retrying notification",
			"channel", msg.Channel,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to deliver %s notification: %w", msg.Channel, err)
	}

	d.logger.DebugwCtx(ctx, "Notification delivered", "channel", msg.Channel, "recipients", len(msg.Recipients))
	return nil
}
