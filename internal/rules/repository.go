package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tableflow/internal/constants"
	pkgerrors "tableflow/pkg/errors"
)

type ListFilter struct {
	TriggerEvent TriggerEvent
	IsActive     *bool
}

type Repository interface {
	Store
	Create(ctx context.Context, rule *Rule) error
	Get(ctx context.Context, tenantID, id string) (*Rule, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Rule, error)
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, tenantID, id string) error
	UpdatePriorities(ctx context.Context, tenantID string, priorities map[string]int) error
	FindByName(ctx context.Context, tenantID, name string) (*Rule, error)
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection(constants.CollectionTableRules),
	}
}

var activeSort = bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}

func (r *mongoRepository) FindActive(ctx context.Context, tenantID string, trigger TriggerEvent) ([]Rule, error) {
	filter := bson.M{
		"tenant_id":     tenantID,
		"trigger_event": trigger,
		"is_active":     true,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(activeSort))
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []Rule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode active rules: %w", err)
	}
	return rules, nil
}

func (r *mongoRepository) Create(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", rule.Name))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *mongoRepository) Get(ctx context.Context, tenantID, id string) (*Rule, error) {
	var rule Rule
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoRepository) FindByName(ctx context.Context, tenantID, name string) (*Rule, error) {
	var rule Rule
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "name": name}).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule by name: %w", err)
	}
	return &rule, nil
}

func (r *mongoRepository) List(ctx context.Context, tenantID string, f ListFilter) ([]Rule, error) {
	filter := bson.M{"tenant_id": tenantID}
	if f.TriggerEvent != "" {
		filter["trigger_event"] = f.TriggerEvent
	}
	if f.IsActive != nil {
		filter["is_active"] = *f.IsActive
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(activeSort))
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer cursor.Close(ctx)

	rules := make([]Rule, 0)
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

func (r *mongoRepository) Update(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": rule.ID, "tenant_id": rule.TenantID}
	result, err := r.collection.ReplaceOne(ctx, filter, rule)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", rule.Name))
		}
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("rule_id", rule.ID)
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("rule_id", id)
	}
	return nil
}

func (r *mongoRepository) UpdatePriorities(ctx context.Context, tenantID string, priorities map[string]int) error {
	if len(priorities) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(priorities))
	for id, priority := range priorities {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id, "tenant_id": tenantID}).
			SetUpdate(bson.M{"$set": bson.M{"priority": priority, "updated_at": now}}))
	}

	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to reorder rules: %w", err)
	}
	if int(result.MatchedCount) != len(priorities) {
		return pkgerrors.ErrNotFound.WithDetail("message", "one or more rules not found for tenant")
	}
	return nil
}
