package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"tableflow/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)

	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)

	viper.SetDefault("broker.kafka.trigger_topic", constants.DefaultTriggerTopic)
	viper.SetDefault("broker.kafka.audit_topic", constants.DefaultAuditTopic)
	viper.SetDefault("broker.kafka.rule_update_topic", constants.DefaultRuleUpdateTopic)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("engine.session_monitor.enabled", true)
	viper.SetDefault("engine.session_monitor.interval_seconds", int(constants.DefaultSessionCheckInterval.Seconds()))
	viper.SetDefault("engine.status_save.max_attempts", constants.DefaultStatusSaveAttempts)
	viper.SetDefault("engine.status_save.initial_interval", "50ms")
	viper.SetDefault("engine.status_save.max_interval", "1s")
	viper.SetDefault("engine.status_save.multiplier", 2.0)

	viper.SetDefault("realtime.redis_channel", "tableflow:realtime")
	viper.SetDefault("realtime.sockjs_prefix", "/realtime")

	viper.SetDefault("deduplication.ttl_seconds", constants.DefaultDedupTTLSeconds)
	viper.SetDefault("deduplication.on_redis_error", constants.FallbackAllow)
	viper.SetDefault("deduplication.hash_algorithm", "sha256")

	viper.SetDefault("notification.retry.max_attempts", 3)
	viper.SetDefault("notification.retry.initial_interval", "100ms")
	viper.SetDefault("notification.retry.max_interval", "1s")
	viper.SetDefault("notification.retry.multiplier", 2.0)

	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("management.rate_limit.rps", 10.0)
	viper.SetDefault("management.rate_limit.burst", 20)
	viper.SetDefault("management.rate_limit.cleanup_interval", 300)
	viper.SetDefault("management.rate_limit.max_age", 600)

	viper.SetDefault("tracing.service_name", "tableflow")

	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.trigger_topic", "BROKER_KAFKA_TRIGGER_TOPIC")
	viper.BindEnv("broker.kafka.audit_topic", "BROKER_KAFKA_AUDIT_TOPIC")
	viper.BindEnv("broker.kafka.rule_update_topic", "BROKER_KAFKA_RULE_UPDATE_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("engine.timezone", "ENGINE_TIMEZONE")
	viper.BindEnv("engine.session_monitor.enabled", "ENGINE_SESSION_MONITOR_ENABLED")
	viper.BindEnv("engine.session_monitor.interval_seconds", "ENGINE_SESSION_MONITOR_INTERVAL_SECONDS")

	viper.BindEnv("notification.smtp.host", "NOTIFICATION_SMTP_HOST")
	viper.BindEnv("notification.smtp.port", "NOTIFICATION_SMTP_PORT")
	viper.BindEnv("notification.smtp.username", "NOTIFICATION_SMTP_USERNAME")
	viper.BindEnv("notification.smtp.password", "NOTIFICATION_SMTP_PASSWORD")
	viper.BindEnv("notification.smtp.from", "NOTIFICATION_SMTP_FROM")
	viper.BindEnv("notification.sms.url", "NOTIFICATION_SMS_URL")
	viper.BindEnv("notification.push.url", "NOTIFICATION_PUSH_URL")

	viper.BindEnv("deduplication.enabled", "DEDUPLICATION_ENABLED")
	viper.BindEnv("deduplication.hash_algorithm", "DEDUPLICATION_HASH_ALGORITHM")

	viper.BindEnv("realtime.enabled", "REALTIME_ENABLED")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
