package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tableflow/internal/rules"
)

type RuleVersion struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	RuleID       string          `json:"rule_id"`
	RuleData     json.RawMessage `json:"rule_data"`
	Version      int             `json:"version"`
	ChangedBy    string          `json:"changed_by,omitempty"`
	ChangeReason string          `json:"change_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	RuleID       *string                `json:"rule_id,omitempty"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *RuleVersion) error
	GetVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error)
	GetVersion(ctx context.Context, tenantID, ruleID string, version int) (*RuleVersion, error)
	GetNextVersion(ctx context.Context, tenantID, ruleID string) (int, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, tenantID string, ruleID *string, limit int) ([]AuditLog, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *RuleVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rule_versions (id, tenant_id, rule_id, rule_data, version, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.TenantID, version.RuleID, []byte(version.RuleData),
		version.Version, version.ChangedBy, version.ChangeReason, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule version: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error) {
	query := `
		SELECT id, tenant_id, rule_id, rule_data, version, changed_by, change_reason, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND rule_id = $2
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]RuleVersion, 0)
	for rows.Next() {
		var (
			v    RuleVersion
			data []byte
		)
		if err := rows.Scan(
			&v.ID, &v.TenantID, &v.RuleID, &data,
			&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.RuleData = data
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *postgresVersioningRepository) GetVersion(ctx context.Context, tenantID, ruleID string, version int) (*RuleVersion, error) {
	query := `
		SELECT id, tenant_id, rule_id, rule_data, version, changed_by, change_reason, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND rule_id = $2 AND version = $3
	`

	var (
		v    RuleVersion
		data []byte
	)
	err := r.db.QueryRowContext(ctx, query, tenantID, ruleID, version).Scan(
		&v.ID, &v.TenantID, &v.RuleID, &data,
		&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	v.RuleData = data
	return &v, nil
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, tenantID, ruleID string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM rule_versions WHERE tenant_id = $1 AND rule_id = $2`

	var version int
	if err := r.db.QueryRowContext(ctx, query, tenantID, ruleID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get next version: %w", err)
	}
	return version, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	var oldValueJSON, newValueJSON []byte
	var err error
	if log.OldValue != nil {
		if oldValueJSON, err = json.Marshal(log.OldValue); err != nil {
			return fmt.Errorf("failed to marshal old value: %w", err)
		}
	}
	if log.NewValue != nil {
		if newValueJSON, err = json.Marshal(log.NewValue); err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}
	}

	query := `
		INSERT INTO rule_audit_logs (id, tenant_id, rule_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.TenantID, log.RuleID, log.Action,
		oldValueJSON, newValueJSON, log.ChangedBy, log.ChangeReason, log.IPAddress, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, tenantID string, ruleID *string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, tenant_id, rule_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
		FROM rule_audit_logs
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	args := []interface{}{tenantID, limit}
	if ruleID != nil {
		query = `
			SELECT id, tenant_id, rule_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM rule_audit_logs
			WHERE tenant_id = $1 AND rule_id = $2
			ORDER BY timestamp DESC
			LIMIT $3
		`
		args = []interface{}{tenantID, *ruleID, limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]AuditLog, 0)
	for rows.Next() {
		var (
			log                        AuditLog
			oldValueJSON, newValueJSON []byte
			changeReason, ipAddress    sql.NullString
		)
		if err := rows.Scan(
			&log.ID, &log.TenantID, &log.RuleID, &log.Action,
			&oldValueJSON, &newValueJSON, &log.ChangedBy, &changeReason, &ipAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.ChangeReason = changeReason.String
		log.IPAddress = ipAddress.String

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}
		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func ruleToJSON(rule *rules.Rule) (json.RawMessage, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	return data, nil
}
