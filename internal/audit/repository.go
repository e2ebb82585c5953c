package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tableflow/internal/constants"
	"tableflow/pkg/metrics"
)

type Repository interface {
	Insert(ctx context.Context, entry *ExecutionLog) error
	List(ctx context.Context, tenantID string, filter ListFilter) ([]ExecutionLog, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Write(ctx context.Context, entry ExecutionLog) error {
	return r.Insert(ctx, &entry)
}

func (r *PostgresRepository) Insert(ctx context.Context, entry *ExecutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to encode execution result: %w", err)
	}

	var errText *string
	if entry.Error != "" {
		errText = &entry.Error
	}

	query := `
		INSERT INTO rule_execution_logs
			(id, event_id, tenant_id, table_number, trigger_event, source, outcome, matched_rules, result, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.EventID, entry.TenantID, entry.TableNumber,
		entry.Trigger, entry.Source, entry.Outcome, pq.Array(entry.MatchedRules),
		resultJSON, errText, entry.DurationMs, entry.CreatedAt,
	)
	metrics.ObserveDatabaseQueryDuration("audit", "postgres", "insert", time.Since(start))
	metrics.IncDatabaseQuery("audit", "postgres", "insert", metrics.StatusLabel(err))
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]ExecutionLog, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.TableNumber != "" {
		add("table_number = $%d", filter.TableNumber)
	}
	if filter.Trigger != "" {
		add("trigger_event = $%d", filter.Trigger)
	}
	if filter.Outcome != "" {
		add("outcome = $%d", filter.Outcome)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	args = append(args, limit, max(filter.Offset, 0))

	query := fmt.Sprintf(`
		SELECT id, event_id, tenant_id, table_number, trigger_event, source, outcome, matched_rules, result, COALESCE(error, ''), duration_ms, created_at
		FROM rule_execution_logs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), len(args)-1, len(args))

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	metrics.ObserveDatabaseQueryDuration("audit", "postgres", "list", time.Since(start))
	metrics.IncDatabaseQuery("audit", "postgres", "list", metrics.StatusLabel(err))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	logs := make([]ExecutionLog, 0)
	for rows.Next() {
		var (
			entry      ExecutionLog
			resultJSON []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.EventID, &entry.TenantID, &entry.TableNumber,
			&entry.Trigger, &entry.Source, &entry.Outcome, pq.Array(&entry.MatchedRules),
			&resultJSON, &entry.Error, &entry.DurationMs, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
			return nil, fmt.Errorf("failed to decode execution result: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution logs: %w", err)
	}
	return logs, nil
}
