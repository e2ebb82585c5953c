package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tableflow/internal/constants"
)

// EnsureMongoIndexes creates the indexes the rule engine queries rely on.
// Collections are created on first insert.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	plan := map[string][]mongo.IndexModel{
		constants.CollectionTableRules: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "trigger_event", Value: 1}, {Key: "is_active", Value: 1}, {Key: "priority", Value: -1}},
				Options: options.Index().SetName("idx_table_rules_tenant_trigger_active_priority"),
			},
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetName("idx_table_rules_tenant_name").SetUnique(true),
			},
		},
		constants.CollectionTables: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "number", Value: 1}},
				Options: options.Index().SetName("idx_tables_tenant_number").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "session_start_time", Value: 1}},
				Options: options.Index().SetName("idx_tables_status_session"),
			},
		},
		constants.CollectionAlerts: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "table_number", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_alerts_tenant_table_created"),
			},
		},
		constants.CollectionWaiterAssignments: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "table_number", Value: 1}},
				Options: options.Index().SetName("idx_waiter_assignments_tenant_table"),
			},
		},
	}

	for name, indexes := range plan {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("failed to create indexes on %s: %w", name, err)
			}
		}
	}
	return nil
}
