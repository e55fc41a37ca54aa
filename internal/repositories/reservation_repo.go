package repositories

import (
	"context"
	"errors"
	"fmt"

	"carnumbers/internal/common"
	"carnumbers/internal/models"

	"github.com/jackc/pgx/v5"
)

// ClaimParams describes a member reserving a number for themselves.
type ClaimParams struct {
	TenantID         int64
	Number           int
	ClaimantID       int64
	ClaimantName     *string
	ExternalMemberID *int64
	ExternalName     *string
}

// ReservationRepository is the reservation store. Every mutating call
// writes exactly one audit entry in the same transaction as the change.
type ReservationRepository interface {
	Claim(ctx context.Context, params ClaimParams) (*models.Reservation, error)
	Release(ctx context.Context, tenantID int64, number int, requestedBy int64, authorized bool) (bool, error)
	UpsertSynced(ctx context.Context, tenantID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error)
	Link(ctx context.Context, tenantID, claimantID, externalMemberID int64, externalName *string) (int, error)
	Get(ctx context.Context, tenantID int64, number int) (*models.Reservation, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]*models.Reservation, error)
	ListByClaimant(ctx context.Context, tenantID, claimantID int64) ([]*models.Reservation, error)
	ClaimedNumbers(ctx context.Context, tenantID int64) ([]int, error)
	Stats(ctx context.Context, tenantID int64) (*models.ReservationStats, error)
}

type reservationRepo struct {
	db Database
}

func NewReservationRepo(db Database) ReservationRepository {
	return &reservationRepo{db: db}
}

const reservationColumns = `id, guild_id, car_number, claimant_id, claimant_name, external_member_id, external_name, origin, verified, synced_at, created_at`

func scanReservation(row pgx.Row, extra ...any) (*models.Reservation, error) {
	res := &models.Reservation{}
	var origin string
	dest := []any{
		&res.ID,
		&res.TenantID,
		&res.Number,
		&res.ClaimantID,
		&res.ClaimantName,
		&res.ExternalMemberID,
		&res.ExternalName,
		&origin,
		&res.Verified,
		&res.SyncedAt,
		&res.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	res.Origin = models.Origin(origin)
	return res, nil
}

func (r *reservationRepo) Claim(ctx context.Context, params ClaimParams) (*models.Reservation, error) {
	query := `
		INSERT INTO number_reservations (guild_id, car_number, claimant_id, claimant_name, external_member_id, external_name, origin, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'claimed', $7, NOW())
		RETURNING ` + reservationColumns

	var reservation *models.Reservation
	err := withTx(ctx, r.db, "claim", func(tx pgx.Tx) error {
		res, err := scanReservation(tx.QueryRow(ctx, query,
			params.TenantID,
			params.Number,
			params.ClaimantID,
			params.ClaimantName,
			params.ExternalMemberID,
			params.ExternalName,
			params.ExternalMemberID != nil,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return common.ErrConflict
			}
			return common.NewStorageError("claim", err)
		}

		actor := params.ClaimantID
		if err := appendAudit(ctx, tx, &models.AuditEntry{
			TenantID: params.TenantID,
			ActorID:  &actor,
			Action:   models.ActionClaim,
			Details:  fmt.Sprintf("claimed #%d", params.Number),
		}); err != nil {
			return err
		}

		reservation = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (r *reservationRepo) Release(ctx context.Context, tenantID int64, number int, requestedBy int64, authorized bool) (bool, error) {
	selectQuery := `
		SELECT ` + reservationColumns + `
		FROM number_reservations
		WHERE guild_id = $1 AND car_number = $2
		FOR UPDATE
	`
	deleteQuery := `DELETE FROM number_reservations WHERE id = $1`

	released := false
	err := withTx(ctx, r.db, "release", func(tx pgx.Tx) error {
		res, err := scanReservation(tx.QueryRow(ctx, selectQuery, tenantID, number))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return common.NewStorageError("release: lookup", err)
		}

		owner := res.IsClaimedBy(requestedBy)
		if !owner && !authorized {
			return common.ErrUnauthorized
		}

		if _, err := tx.Exec(ctx, deleteQuery, res.ID); err != nil {
			return common.NewStorageError("release: delete", err)
		}

		action := models.ActionRelease
		details := fmt.Sprintf("released #%d", number)
		if !owner {
			action = models.ActionForceRelease
			details = fmt.Sprintf("force released #%d held by %s", number, describeActor(res.ClaimantID))
		}

		actor := requestedBy
		if err := appendAudit(ctx, tx, &models.AuditEntry{
			TenantID: tenantID,
			ActorID:  &actor,
			Action:   action,
			Details:  details,
		}); err != nil {
			return err
		}

		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// UpsertSynced records an external roster assignment. Only the external
// identity, verified flag and synced_at are written; claimant and origin of
// an existing row are never touched. A call that would not change the row
// is a no-op and writes no audit entry.
func (r *reservationRepo) UpsertSynced(ctx context.Context, tenantID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error) {
	upsertQuery := `
		INSERT INTO number_reservations AS r (guild_id, car_number, external_member_id, external_name, origin, verified, synced_at, created_at)
		VALUES ($1, $2, $3, $4, 'synced', TRUE, NOW(), NOW())
		ON CONFLICT (guild_id, car_number) DO UPDATE
		SET external_member_id = EXCLUDED.external_member_id,
			external_name = EXCLUDED.external_name,
			verified = TRUE,
			synced_at = NOW()
		WHERE r.external_member_id IS DISTINCT FROM EXCLUDED.external_member_id
			OR r.external_name IS DISTINCT FROM EXCLUDED.external_name
			OR r.verified = FALSE
			OR r.synced_at IS NULL
		RETURNING ` + reservationColumns + `, (xmax = 0) AS inserted`

	selectQuery := `
		SELECT ` + reservationColumns + `
		FROM number_reservations
		WHERE guild_id = $1 AND car_number = $2
	`

	var outcome *models.SyncOutcome
	err := withTx(ctx, r.db, "upsert synced", func(tx pgx.Tx) error {
		var inserted bool
		res, err := scanReservation(tx.QueryRow(ctx, upsertQuery, tenantID, number, externalMemberID, externalName), &inserted)
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := scanReservation(tx.QueryRow(ctx, selectQuery, tenantID, number))
			if err != nil {
				return common.NewStorageError("upsert synced: reload", err)
			}
			outcome = &models.SyncOutcome{Reservation: existing, Result: models.SyncUnchanged}
			return nil
		}
		if err != nil {
			return common.NewStorageError("upsert synced", err)
		}

		entry := &models.AuditEntry{TenantID: tenantID}
		if inserted {
			outcome = &models.SyncOutcome{Reservation: res, Result: models.SyncCreated}
			entry.Action = models.ActionSyncInsert
			entry.Details = fmt.Sprintf("synced #%d for %s (%d)", number, externalName, externalMemberID)
		} else {
			outcome = &models.SyncOutcome{Reservation: res, Result: models.SyncUpdated}
			entry.Action = models.ActionSyncUpdate
			entry.Details = fmt.Sprintf("confirmed #%d as %s (%d)", number, externalName, externalMemberID)
		}
		return appendAudit(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Link attaches an external identity to every reservation the claimant holds.
func (r *reservationRepo) Link(ctx context.Context, tenantID, claimantID, externalMemberID int64, externalName *string) (int, error) {
	query := `
		UPDATE number_reservations
		SET external_member_id = $3, external_name = COALESCE($4, external_name), verified = TRUE
		WHERE guild_id = $1 AND claimant_id = $2
	`

	var updated int
	err := withTx(ctx, r.db, "link", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, tenantID, claimantID, externalMemberID, externalName)
		if err != nil {
			return common.NewStorageError("link", err)
		}
		updated = int(tag.RowsAffected())
		if updated == 0 {
			return nil
		}

		actor := claimantID
		return appendAudit(ctx, tx, &models.AuditEntry{
			TenantID: tenantID,
			ActorID:  &actor,
			Action:   models.ActionLink,
			Details:  fmt.Sprintf("linked external member %d to %d reservation(s)", externalMemberID, updated),
		})
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *reservationRepo) Get(ctx context.Context, tenantID int64, number int) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM number_reservations
		WHERE guild_id = $1 AND car_number = $2
	`
	res, err := scanReservation(r.db.QueryRow(ctx, query, tenantID, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewStorageError("get reservation", err)
	}
	return res, nil
}

func (r *reservationRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM number_reservations
		WHERE guild_id = $1
		ORDER BY car_number ASC
	`
	return r.list(ctx, "list reservations", query, tenantID)
}

func (r *reservationRepo) ListByClaimant(ctx context.Context, tenantID, claimantID int64) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM number_reservations
		WHERE guild_id = $1 AND claimant_id = $2
		ORDER BY car_number ASC
	`
	return r.list(ctx, "list claimant reservations", query, tenantID, claimantID)
}

func (r *reservationRepo) list(ctx context.Context, op, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, common.NewStorageError(op, err)
	}
	defer rows.Close()

	reservations := make([]*models.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, common.NewStorageError(op, err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError(op, err)
	}
	return reservations, nil
}

func (r *reservationRepo) ClaimedNumbers(ctx context.Context, tenantID int64) ([]int, error) {
	query := `SELECT car_number FROM number_reservations WHERE guild_id = $1 ORDER BY car_number ASC`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, common.NewStorageError("claimed numbers", err)
	}
	defer rows.Close()

	numbers := make([]int, 0)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, common.NewStorageError("claimed numbers", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("claimed numbers", err)
	}
	return numbers, nil
}

func (r *reservationRepo) Stats(ctx context.Context, tenantID int64) (*models.ReservationStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE synced_at IS NOT NULL),
			COUNT(*) FILTER (WHERE verified)
		FROM number_reservations
		WHERE guild_id = $1
	`
	stats := &models.ReservationStats{}
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&stats.Total, &stats.Synced, &stats.Verified); err != nil {
		return nil, common.NewStorageError("reservation stats", err)
	}
	return stats, nil
}
