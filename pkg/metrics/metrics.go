package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EngineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_total",
			Help: "Total number of trigger events processed by the rule engine (count)",
		},
		[]string{"trigger", "outcome"},
	)

	EngineEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_event_duration_ms",
			Help:    "Duration of a single processEvent call in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"trigger"},
	)

	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rule_evaluations_total",
			Help: "Total number of rule evaluations (count)",
		},
		[]string{"trigger", "result"},
	)

	ActionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_action_executions_total",
			Help: "Total number of executed actions (count)",
		},
		[]string{"action", "status"},
	)

	StatusChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "table_status_changes_total",
			Help: "Total number of table status transitions applied (count)",
		},
		[]string{"status", "source"},
	)

	StatusSaveConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "table_status_save_conflicts_total",
			Help: "Total number of optimistic version conflicts while saving tables (count)",
		},
	)

	ActiveTimers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_active_timers",
			Help: "Number of pending delayed actions (count)",
		},
	)

	TimerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_timer_events_total",
			Help: "Timer lifecycle events (count)",
		},
		[]string{"event"},
	)

	SessionMonitorTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_monitor_ticks_total",
			Help: "Total number of session monitor ticks (count)",
		},
		[]string{"status"},
	)

	SessionMonitorTablesChecked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_monitor_tables_checked",
			Help: "Number of occupied tables checked on the last tick (count)",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification dispatches (count)",
		},
		[]string{"channel", "status"},
	)

	NotificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_ms",
			Help:    "Duration of notification dispatch in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"channel"},
	)

	RealtimeBroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Total number of realtime events emitted (count)",
		},
		[]string{"event", "status"},
	)

	RealtimeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_sessions",
			Help: "Number of connected realtime sessions (count)",
		},
	)

	DedupEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_events_total",
			Help: "Total number of inbound events checked for duplicates (count)",
		},
		[]string{"status"},
	)

	DedupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_duration_ms",
			Help:    "Duration of duplicate checks in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to
// call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EngineEventsTotal,
			EngineEventDuration,
			RuleEvaluationsTotal,
			ActionExecutionsTotal,
			StatusChangesTotal,
			StatusSaveConflictsTotal,
			ActiveTimers,
			TimerEventsTotal,
			SessionMonitorTicksTotal,
			SessionMonitorTablesChecked,
			NotificationsTotal,
			NotificationDuration,
			RealtimeBroadcastsTotal,
			RealtimeSessions,
			DedupEventsTotal,
			DedupDuration,
			RetryAttemptsTotal,
			DLQMessagesTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
			KafkaWriteDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			FallbackUsageTotal,
			DatabaseQueriesTotal,
			DatabaseQueryDuration,
		)
	})
}

func ObserveEventDuration(trigger string, duration time.Duration) {
	EngineEventDuration.WithLabelValues(trigger).Observe(float64(duration.Milliseconds()))
}

func IncEvent(trigger, outcome string) {
	EngineEventsTotal.WithLabelValues(trigger, outcome).Inc()
}

func IncRuleEvaluation(trigger, result string) {
	RuleEvaluationsTotal.WithLabelValues(trigger, result).Inc()
}

func IncActionExecution(action, status string) {
	ActionExecutionsTotal.WithLabelValues(action, status).Inc()
}

func IncStatusChange(status, source string) {
	StatusChangesTotal.WithLabelValues(status, source).Inc()
}

func SetActiveTimers(count int) {
	ActiveTimers.Set(float64(count))
}

func IncTimerEvent(event string) {
	TimerEventsTotal.WithLabelValues(event).Inc()
}

func ObserveNotification(channel, status string, duration time.Duration) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
	NotificationDuration.WithLabelValues(channel).Observe(float64(duration.Milliseconds()))
}

func IncBroadcast(event, status string) {
	RealtimeBroadcastsTotal.WithLabelValues(event, status).Inc()
}

func ObserveDedup(status string, duration time.Duration) {
	DedupEventsTotal.WithLabelValues(status).Inc()
	DedupDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}

func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// PartitionLabel formats a Kafka partition for use as a label value.
func PartitionLabel(partition int) string {
	return fmt.Sprintf("%d", partition)
}
