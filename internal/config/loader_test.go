package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
database:
  mongodb:
    uri: mongodb://localhost:27017
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "tableflow", cfg.Database.MongoDB.Database)
	assert.Equal(t, "table_events", cfg.Broker.Kafka.TriggerTopic)
	assert.True(t, cfg.Engine.SessionMonitor.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Engine.SessionMonitor.Interval())
	assert.Equal(t, 3, cfg.Engine.StatusSave.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.StatusSave.InitialInterval)
	assert.Equal(t, "sha256", cfg.Deduplication.HashAlgorithm)
	assert.Equal(t, "/realtime", cfg.Realtime.SockJSPrefix)
	assert.Equal(t, 0.5, cfg.CircuitBreaker.FailureRatio)
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.MinRequests)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)

	loc, err := cfg.Engine.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
engine:
  timezone: Europe/Berlin
notification:
  directory:
    manager: [boss@example.com]
broker:
  type: kafka
  kafka:
    brokers: [k1:9092]
    group_id: engine
`))
	require.NoError(t, err)

	loc, err := cfg.Engine.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
	assert.Equal(t, []string{"boss@example.com"}, cfg.Notification.Directory["manager"])
	assert.Equal(t, []string{"k1:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BROKER_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("DEDUPLICATION_HASH_ALGORITHM", "md5")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
broker:
  type: kafka
  kafka:
    brokers: [k1:9092]
    group_id: engine
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "md5", cfg.Deduplication.HashAlgorithm)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "missing mongo", body: "server:\n  port: 8080\n", wantErr: "database.mongodb.uri"},
		{name: "bad timezone", body: minimalConfig + "engine:\n  timezone: Mars/Olympus\n", wantErr: "engine.timezone"},
		{name: "dedup without redis", body: minimalConfig + "deduplication:\n  enabled: true\n", wantErr: "deduplication.enabled"},
		{name: "kafka without brokers", body: minimalConfig + "broker:\n  type: kafka\n", wantErr: "broker.kafka.brokers"},
		{name: "unknown broker", body: minimalConfig + "broker:\n  type: nats\n", wantErr: "broker.type"},
		{name: "bad webhook", body: minimalConfig + "notification:\n  sms:\n    enabled: true\n    url: ftp://x\n", wantErr: "notification.sms.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
