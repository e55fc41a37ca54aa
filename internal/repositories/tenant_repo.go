package repositories

import (
	"context"
	"errors"
	"fmt"

	"carnumbers/internal/common"
	"carnumbers/internal/models"

	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Upsert(ctx context.Context, tenant *models.Tenant, actorID *int64) (*models.Tenant, error)
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

type tenantRepo struct {
	db Database
}

func NewTenantRepo(db Database) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `guild_id, league_id, min_number, max_number, admin_role_id, announcement_channel_id, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(
		&tenant.ID,
		&tenant.LeagueID,
		&tenant.MinNumber,
		&tenant.MaxNumber,
		&tenant.AdminRoleID,
		&tenant.AnnouncementChannelID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// Upsert creates the guild configuration or updates it in place.
func (r *tenantRepo) Upsert(ctx context.Context, tenant *models.Tenant, actorID *int64) (*models.Tenant, error) {
	query := `
		INSERT INTO guild_configs (guild_id, league_id, min_number, max_number, admin_role_id, announcement_channel_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (guild_id) DO UPDATE
		SET league_id = EXCLUDED.league_id,
			min_number = EXCLUDED.min_number,
			max_number = EXCLUDED.max_number,
			admin_role_id = EXCLUDED.admin_role_id,
			announcement_channel_id = EXCLUDED.announcement_channel_id,
			updated_at = NOW()
		RETURNING ` + tenantColumns

	var saved *models.Tenant
	err := withTx(ctx, r.db, "configure guild", func(tx pgx.Tx) error {
		t, err := scanTenant(tx.QueryRow(ctx, query,
			tenant.ID,
			tenant.LeagueID,
			tenant.MinNumber,
			tenant.MaxNumber,
			tenant.AdminRoleID,
			tenant.AnnouncementChannelID,
		))
		if err != nil {
			return common.NewStorageError("configure guild", err)
		}

		league := "none"
		if t.LeagueID != nil {
			league = fmt.Sprintf("%d", *t.LeagueID)
		}
		if err := appendAudit(ctx, tx, &models.AuditEntry{
			TenantID: t.ID,
			ActorID:  actorID,
			Action:   models.ActionSetup,
			Details:  fmt.Sprintf("league %s, numbers %d-%d", league, t.MinNumber, t.MaxNumber),
		}); err != nil {
			return err
		}

		saved = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM guild_configs
		WHERE guild_id = $1
	`
	tenant, err := scanTenant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewStorageError("get guild", err)
	}
	return tenant, nil
}

func (r *tenantRepo) List(ctx context.Context) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM guild_configs
		ORDER BY guild_id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, common.NewStorageError("list guilds", err)
	}
	defer rows.Close()

	tenants := make([]*models.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, common.NewStorageError("list guilds", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list guilds", err)
	}
	return tenants, nil
}
