package services

import (
	"context"

	"carnumbers/internal/common"
	"carnumbers/internal/models"
	"carnumbers/internal/repositories"
)

type AuditLogsService interface {
	Recent(ctx context.Context, guildID int64, limit int) ([]*models.AuditEntry, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
	}
}

// Recent returns the newest entries first. The limit is clamped to
// [1, MaxAuditLimit] and defaults to DefaultAuditLimit.
func (s *auditLogsService) Recent(ctx context.Context, guildID int64, limit int) ([]*models.AuditEntry, error) {
	limit = common.ValidateLimit(limit, models.DefaultAuditLimit, models.MaxAuditLimit)
	return s.auditLogsRepo.Recent(ctx, guildID, limit)
}
