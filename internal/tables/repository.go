package tables

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tableflow/internal/constants"
)

type Store interface {
	// FindByTenantAndNumber returns nil without error when the table does not exist.
	FindByTenantAndNumber(ctx context.Context, tenantID, number string) (*Table, error)
	// Save persists the table if its version is unchanged and bumps the version.
	Save(ctx context.Context, table *Table) error
	FindOccupiedWithSession(ctx context.Context) ([]Table, error)
}

type OrderStore interface {
	// FindByID returns nil without error when the order does not exist.
	FindByID(ctx context.Context, tenantID, orderID string) (*Order, error)
}

type mongoStore struct {
	collection *mongo.Collection
}

func NewStore(db *mongo.Database) Store {
	return &mongoStore{collection: db.Collection(constants.CollectionTables)}
}

func (s *mongoStore) FindByTenantAndNumber(ctx context.Context, tenantID, number string) (*Table, error) {
	var table Table
	err := s.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "number": number}).Decode(&table)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find table: %w", err)
	}
	return &table, nil
}

func (s *mongoStore) Save(ctx context.Context, table *Table) error {
	expected := table.Version
	next := *table
	next.Version = expected + 1

	filter := bson.M{"_id": table.ID, "tenant_id": table.TenantID, "version": expected}
	if expected == 0 {
		// Documents created outside the engine may lack the field.
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}

	result, err := s.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("failed to save table: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}

	table.Version = next.Version
	return nil
}

func (s *mongoStore) FindOccupiedWithSession(ctx context.Context) ([]Table, error) {
	filter := bson.M{
		"status":             constants.TableStatusOccupied,
		"session_start_time": bson.M{"$ne": nil},
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "tenant_id", Value: 1}, {Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query occupied tables: %w", err)
	}
	defer cursor.Close(ctx)

	var tables []Table
	if err := cursor.All(ctx, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode occupied tables: %w", err)
	}
	return tables, nil
}

type mongoOrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) OrderStore {
	return &mongoOrderStore{collection: db.Collection(constants.CollectionOrders)}
}

func (s *mongoOrderStore) FindByID(ctx context.Context, tenantID, orderID string) (*Order, error) {
	var order Order
	err := s.collection.FindOne(ctx, bson.M{"_id": orderID, "tenant_id": tenantID}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}
