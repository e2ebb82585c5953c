package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixEvent = "tableflow:event:"
)

const (
	DefaultTriggerTopic    = "table_events"
	DefaultAuditTopic      = "table_audit"
	DefaultRuleUpdateTopic = "table_rule_updates"
)

const (
	DefaultMongoDBName = "tableflow"
)

const (
	CollectionTableRules        = "table_rules"
	CollectionTables            = "tables"
	CollectionOrders            = "orders"
	CollectionAlerts            = "table_alerts"
	CollectionWaiterAssignments = "waiter_assignments"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultSessionCheckInterval = 5 * time.Minute
	DefaultDedupTTLSeconds      = 3600
	DefaultStatusSaveAttempts   = 3
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// Behaviour when the dedup store is unreachable.
const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	RealtimeEventStatusUpdate   = "table-status-update"
	RealtimeEventAlert          = "table-alert"
	RealtimeEventWaiterAssigned = "waiter-assigned"
	RealtimeEventNotification   = "notification"
)

const (
	ChannelEmail  = "email"
	ChannelSMS    = "sms"
	ChannelPush   = "push"
	ChannelSocket = "socket"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
	TableStatusCleaning  = "cleaning"
)
