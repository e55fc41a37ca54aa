package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carnumbers/internal/models"

	"go.uber.org/zap"
)

// SnapshotArchive keeps a copy of every roster a sync pass fetched.
// Store is best-effort: callers log the error and carry on.
type SnapshotArchive interface {
	Store(ctx context.Context, guildID, leagueID int64, entries []models.RosterEntry) error
}

type rosterSnapshot struct {
	GuildID   int64                `json:"guild_id"`
	LeagueID  int64                `json:"league_id"`
	FetchedAt time.Time            `json:"fetched_at"`
	Entries   []models.RosterEntry `json:"entries"`
}

type minioSnapshotArchive struct {
	store  MinioService
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

func NewSnapshotArchive(store MinioService, bucket string, logger *zap.Logger) SnapshotArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &minioSnapshotArchive{
		store:  store,
		bucket: bucket,
		now:    time.Now,
		logger: logger,
	}
}

// SnapshotObjectName is roster-snapshots/<guild>/<league>/<RFC3339>.json.
func SnapshotObjectName(guildID, leagueID int64, at time.Time) string {
	return fmt.Sprintf("roster-snapshots/%d/%d/%s.json", guildID, leagueID, at.UTC().Format(time.RFC3339))
}

func (a *minioSnapshotArchive) Store(ctx context.Context, guildID, leagueID int64, entries []models.RosterEntry) error {
	at := a.now()
	body, err := json.Marshal(rosterSnapshot{
		GuildID:   guildID,
		LeagueID:  leagueID,
		FetchedAt: at.UTC(),
		Entries:   entries,
	})
	if err != nil {
		return fmt.Errorf("encode roster snapshot: %w", err)
	}

	name := SnapshotObjectName(guildID, leagueID, at)
	if err := a.store.Upload(ctx, a.bucket, name, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("upload roster snapshot %s: %w", name, err)
	}

	a.logger.Debug("roster snapshot archived",
		zap.String("object", name),
		zap.Int("entries", len(entries)))
	return nil
}

type nopSnapshotArchive struct{}

// NewNopSnapshotArchive is used when object storage is not configured.
func NewNopSnapshotArchive() SnapshotArchive {
	return nopSnapshotArchive{}
}

func (nopSnapshotArchive) Store(context.Context, int64, int64, []models.RosterEntry) error {
	return nil
}
