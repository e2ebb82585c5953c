package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tableflow/internal/constants"
)

// ActivityStore records the side effects of create_alert and assign_waiter.
type ActivityStore interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	CreateWaiterAssignment(ctx context.Context, assignment *WaiterAssignment) error
	ListAlerts(ctx context.Context, tenantID, tableNumber string, limit int) ([]Alert, error)
}

type mongoActivityStore struct {
	alerts      *mongo.Collection
	assignments *mongo.Collection
}

func NewActivityStore(db *mongo.Database) ActivityStore {
	return &mongoActivityStore{
		alerts:      db.Collection(constants.CollectionAlerts),
		assignments: db.Collection(constants.CollectionWaiterAssignments),
	}
}

func (s *mongoActivityStore) CreateAlert(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	if _, err := s.alerts.InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *mongoActivityStore) CreateWaiterAssignment(ctx context.Context, assignment *WaiterAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.New().String()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}

	if _, err := s.assignments.InsertOne(ctx, assignment); err != nil {
		return fmt.Errorf("failed to create waiter assignment: %w", err)
	}
	return nil
}

func (s *mongoActivityStore) ListAlerts(ctx context.Context, tenantID, tableNumber string, limit int) ([]Alert, error) {
	filter := bson.M{"tenant_id": tenantID}
	if tableNumber != "" {
		filter["table_number"] = tableNumber
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.alerts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := make([]Alert, 0)
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}
