package repositories

import (
	"context"
	"errors"
	"fmt"

	"carnumbers/internal/common"
	"carnumbers/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the repositories use. pgxmock
// pools satisfy it as well.
type Database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queryer is implemented by both Database and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db Database, op string, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return common.NewStorageError(op+": begin", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return common.NewStorageError(op+": commit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const insertAuditQuery = `
		INSERT INTO audit_log (id, guild_id, actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

// appendAudit writes one audit entry on q, normally the caller's transaction.
func appendAudit(ctx context.Context, q queryer, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := q.Exec(ctx, insertAuditQuery, entry.ID, entry.TenantID, entry.ActorID, entry.Action, entry.Details)
	if err != nil {
		return common.NewStorageError("append audit", err)
	}
	return nil
}

func describeActor(actorID *int64) string {
	if actorID == nil {
		return "system"
	}
	return fmt.Sprintf("user %d", *actorID)
}
