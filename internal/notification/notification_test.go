package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"tableflow/internal/config"
	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/pkg/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     time.Millisecond,
	Multiplier:      1.0,
}

func alert(channel string, recipients ...string) Message {
	return Message{
		TenantID:   "tenant-a",
		Channel:    channel,
		Recipients: recipients,
		Message:    "Table 5 needs attention",
		Data:       map[string]any{"table_number": 5},
	}
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

type emission struct {
	room    string
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []emission
	err   error
}

func (b *recordingBroadcaster) Emit(_ context.Context, room, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, emission{room: room, event: event, payload: payload})
	return nil
}

func TestDirectoryResolve(t *testing.T) {
	dir := Directory{
		"manager": {"boss@example.com", " floor@example.com "},
		"waiter":  {"floor@example.com"},
	}

	got := dir.Resolve([]string{"manager", "waiter", "host@example.com", "", "host@example.com"})

	assert.Equal(t, []string{"boss@example.com", "floor@example.com", "host@example.com"}, got)
	assert.Empty(t, Directory(nil).Resolve(nil))
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, alert(constants.ChannelEmail, "manager").Validate())

	noTenant := alert(constants.ChannelEmail, "manager")
	noTenant.TenantID = ""
	assert.Error(t, noTenant.Validate())
	assert.Error(t, alert("fax", "manager").Validate())
	assert.Error(t, alert(constants.ChannelEmail).Validate())
}

func TestEmailSender(t *testing.T) {
	t.Run("sends to resolved addresses", func(t *testing.T) {
		mailer := &fakeMailer{}
		sender := NewEmailSenderWithMailer(mailer, "alerts@example.com", Directory{"manager": {"boss@example.com"}})

		err := sender.Send(context.Background(), alert(constants.ChannelEmail, "manager", "kitchen"))
		require.NoError(t, err)
		require.Len(t, mailer.sent, 1)

		m := mailer.sent[0]
		assert.Equal(t, []string{"alerts@example.com"}, m.GetHeader("From"))
		assert.Equal(t, []string{"boss@example.com"}, m.GetHeader("To"))
		assert.Equal(t, []string{"Table 5 alert"}, m.GetHeader("Subject"))
	})

	t.Run("no deliverable address", func(t *testing.T) {
		mailer := &fakeMailer{}
		sender := NewEmailSenderWithMailer(mailer, "alerts@example.com", nil)

		err := sender.Send(context.Background(), alert(constants.ChannelEmail, "manager"))
		require.Error(t, err)
		assert.Empty(t, mailer.sent)
	})

	t.Run("mailer failure", func(t *testing.T) {
		mailer := &fakeMailer{err: errors.New("smtp down")}
		sender := NewEmailSenderWithMailer(mailer, "alerts@example.com", nil)

		err := sender.Send(context.Background(), alert(constants.ChannelEmail, "boss@example.com"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp down")
	})

	t.Run("subject without table", func(t *testing.T) {
		assert.Equal(t, "Table alert", subject(Message{}))
	})
}

func TestWebhookSender(t *testing.T) {
	t.Run("posts json body with headers", func(t *testing.T) {
		var got webhookBody
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		sender := NewWebhookSender(config.WebhookConfig{
			URL:     srv.URL,
			Headers: map[string]string{"Authorization": "Bearer token"},
		}, Directory{"manager": {"+15550100"}})

		err := sender.Send(context.Background(), alert(constants.ChannelSMS, "manager"))
		require.NoError(t, err)
		assert.Equal(t, "Bearer token", auth)
		assert.Equal(t, "tenant-a", got.TenantID)
		assert.Equal(t, constants.ChannelSMS, got.Channel)
		assert.Equal(t, []string{"+15550100"}, got.Recipients)
		assert.Equal(t, "Table 5 needs attention", got.Message)
	})

	tests := []struct {
		name  string
		code  int
		fatal bool
	}{
		{"client error is fatal", http.StatusBadRequest, true},
		{"rate limit is retryable", http.StatusTooManyRequests, false},
		{"server error is retryable", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			sender := NewWebhookSender(config.WebhookConfig{URL: srv.URL, TimeoutSeconds: 1}, nil)
			err := sender.Send(context.Background(), alert(constants.ChannelPush, "manager"))
			require.Error(t, err)

			var fatal retry.FatalError
			assert.Equal(t, tt.fatal, errors.As(err, &fatal))
		})
	}
}

func TestSocketSender(t *testing.T) {
	b := &recordingBroadcaster{}
	sender := NewSocketSender(b)

	err := sender.Send(context.Background(), alert(constants.ChannelSocket, "manager", "waiter"))
	require.NoError(t, err)
	require.Len(t, b.calls, 2)
	assert.Equal(t, "tenant:tenant-a:role:manager", b.calls[0].room)
	assert.Equal(t, "tenant:tenant-a:role:waiter", b.calls[1].room)
	assert.Equal(t, constants.RealtimeEventNotification, b.calls[0].event)

	payload, ok := b.calls[0].payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Table 5 needs attention", payload["message"])

	b.err = errors.New("emit failed")
	assert.Error(t, sender.Send(context.Background(), alert(constants.ChannelSocket, "manager")))
}

func TestDispatcher(t *testing.T) {
	log := logger.NopLogger()

	t.Run("routes by channel", func(t *testing.T) {
		d := NewDispatcher(fastPolicy, config.CircuitBreakerConfig{}, log)
		var got []string
		d.Register(constants.ChannelEmail, SenderFunc(func(_ context.Context, msg Message) error {
			got = append(got, "email:"+msg.Recipients[0])
			return nil
		}))
		d.Register(constants.ChannelSocket, SenderFunc(func(_ context.Context, msg Message) error {
			got = append(got, "socket:"+msg.Recipients[0])
			return nil
		}))

		require.NoError(t, d.Send(context.Background(), alert(constants.ChannelSocket, "manager")))
		require.NoError(t, d.Send(context.Background(), alert(constants.ChannelEmail, "owner")))
		assert.Equal(t, []string{"socket:manager", "email:owner"}, got)
		assert.Equal(t, []string{constants.ChannelEmail, constants.ChannelSocket}, d.Channels())
	})

	t.Run("unconfigured channel", func(t *testing.T) {
		d := NewDispatcher(fastPolicy, config.CircuitBreakerConfig{}, log)
		err := d.Send(context.Background(), alert(constants.ChannelSMS, "manager"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("invalid message", func(t *testing.T) {
		d := NewDispatcher(fastPolicy, config.CircuitBreakerConfig{}, log)
		assert.Error(t, d.Send(context.Background(), alert(constants.ChannelSocket)))
	})

	t.Run("retries transient failures", func(t *testing.T) {
		d := NewDispatcher(fastPolicy, config.CircuitBreakerConfig{}, log)
		calls := 0
		d.Register(constants.ChannelPush, SenderFunc(func(context.Context, Message) error {
			calls++
			if calls < 3 {
				return errors.New("gateway timeout")
			}
			return nil
		}))

		require.NoError(t, d.Send(context.Background(), alert(constants.ChannelPush, "manager")))
		assert.Equal(t, 3, calls)
	})

	t.Run("fatal failures are not retried", func(t *testing.T) {
		d := NewDispatcher(fastPolicy, config.CircuitBreakerConfig{}, log)
		calls := 0
		d.Register(constants.ChannelPush, SenderFunc(func(context.Context, Message) error {
			calls++
			return retry.NewFatalError(errors.New("bad request"))
		}))

		require.Error(t, d.Send(context.Background(), alert(constants.ChannelPush, "manager")))
		assert.Equal(t, 1, calls)
	})

	t.Run("open breaker short-circuits", func(t *testing.T) {
		single := retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
		d := NewDispatcher(single, config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			Timeout:      time.Minute,
		}, log)
		calls := 0
		d.Register(constants.ChannelSMS, SenderFunc(func(context.Context, Message) error {
			calls++
			return errors.New("gateway down")
		}))

		for i := 0; i < 3; i++ {
			assert.Error(t, d.Send(context.Background(), alert(constants.ChannelSMS, "manager")))
		}
		assert.Equal(t, 2, calls)
		assert.True(t, d.breakers[constants.ChannelSMS].IsOpen())
	})
}

func TestNewDispatcherFromConfig(t *testing.T) {
	cfg := config.NotificationConfig{
		SMTP: config.SMTPConfig{Enabled: true, Host: "localhost", Port: 1025, From: "alerts@example.com"},
		Push: config.WebhookConfig{Enabled: true, URL: "http://localhost:9/push"},
	}

	d := NewDispatcherFromConfig(cfg, config.CircuitBreakerConfig{}, &recordingBroadcaster{}, logger.NopLogger())

	assert.Equal(t, []string{constants.ChannelEmail, constants.ChannelPush, constants.ChannelSocket}, d.Channels())
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, p.InitialInterval)

	p = RetryPolicy(config.RetryConfig{MaxAttempts: 5, InitialInterval: time.Second, Multiplier: 3})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.Equal(t, 3.0, p.Multiplier)
	assert.Equal(t, 2*time.Second, p.MaxInterval)
}
