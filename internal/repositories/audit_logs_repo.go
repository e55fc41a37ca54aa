package repositories

import (
	"context"

	"carnumbers/internal/common"
	"carnumbers/internal/models"
)

type AuditLogsRepository interface {
	// Recent returns the newest entries for a guild, newest first.
	Recent(ctx context.Context, tenantID int64, limit int) ([]*models.AuditEntry, error)
}

type auditLogsRepo struct {
	db Database
}

func NewAuditLogsRepo(db Database) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Recent(ctx context.Context, tenantID int64, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, guild_id, actor_id, action, details, created_at
		FROM audit_log
		WHERE guild_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, common.NewStorageError("list audit log", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)
	for rows.Next() {
		entry := &models.AuditEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.ActorID,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, common.NewStorageError("list audit log", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list audit log", err)
	}
	return entries, nil
}
