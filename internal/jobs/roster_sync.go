package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carnumbers/internal/common"
	"carnumbers/internal/iracing"
	"carnumbers/internal/logging"
	"carnumbers/internal/metrics"
	"carnumbers/internal/models"
	"carnumbers/internal/repositories"
	"carnumbers/internal/services"

	"go.uber.org/zap"
)

type PassStatus string

const (
	PassSkipped   PassStatus = "skipped"
	PassFailed    PassStatus = "failed"
	PassSucceeded PassStatus = "succeeded"
)

const reasonNoCredentials = "roster credentials not configured"

// PassResult is the outcome of one reconciliation pass for one guild.
type PassResult struct {
	GuildID    int64      `json:"guild_id"`
	LeagueID   *int64     `json:"league_id,omitempty"`
	Status     PassStatus `json:"status"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Unassigned int        `json:"unassigned"`
	Duplicates []int      `json:"duplicates,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Err        error      `json:"-"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

func (r *PassResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Syncer runs a single guild pass.
type Syncer interface {
	SyncTenant(ctx context.Context, guildID int64) (*PassResult, error)
}

// RosterApplier writes synced rows. services.ReservationService satisfies it.
type RosterApplier interface {
	UpsertSynced(ctx context.Context, guildID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error)
}

type RosterSyncConfig struct {
	Tenants      repositories.TenantRepository
	Applier      RosterApplier
	Fetcher      iracing.RosterFetcher
	Archive      services.SnapshotArchive
	Status       *SyncStatusTracker
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	FetchTimeout time.Duration
}

// RosterSyncService reconciles the reservation store with external league
// rosters. Passes never delete: a member missing from the roster keeps
// their reservation.
type RosterSyncService struct {
	tenants      repositories.TenantRepository
	applier      RosterApplier
	fetcher      iracing.RosterFetcher
	archive      services.SnapshotArchive
	status       *SyncStatusTracker
	metrics      *metrics.Metrics
	logger       *zap.Logger
	fetchTimeout time.Duration
	locks        *keyedMutex
	now          func() time.Time
}

func NewRosterSyncService(cfg RosterSyncConfig) *RosterSyncService {
	s := &RosterSyncService{
		tenants:      cfg.Tenants,
		applier:      cfg.Applier,
		fetcher:      cfg.Fetcher,
		archive:      cfg.Archive,
		status:       cfg.Status,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		fetchTimeout: cfg.FetchTimeout,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
	if s.archive == nil {
		s.archive = services.NewNopSnapshotArchive()
	}
	if s.status == nil {
		s.status = NewSyncStatusTracker()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = 30 * time.Second
	}
	return s
}

// Status exposes the tracker that records finished passes.
func (s *RosterSyncService) Status() *SyncStatusTracker {
	return s.status
}

// SyncTenant runs one pass for guildID. A fetch failure is reported as a
// failed result with a nil error; only storage failures are returned.
func (s *RosterSyncService) SyncTenant(ctx context.Context, guildID int64) (*PassResult, error) {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	result := &PassResult{GuildID: guildID, StartedAt: s.now()}
	err := s.runPass(ctx, result)
	result.FinishedAt = s.now()

	s.record(result)
	return result, err
}

func (s *RosterSyncService) runPass(ctx context.Context, result *PassResult) error {
	log := s.logger.With(zap.Int64("guild_id", result.GuildID))

	tenant, err := s.tenants.GetByID(ctx, result.GuildID)
	if errors.Is(err, common.ErrNotFound) {
		result.Status = PassSkipped
		result.Reason = "guild not configured"
		return nil
	}
	if err != nil {
		return s.fail(result, err)
	}
	if !tenant.SyncEnabled() {
		result.Status = PassSkipped
		result.Reason = "no league linked"
		return nil
	}

	result.LeagueID = tenant.LeagueID
	leagueID := *tenant.LeagueID
	log = s.logger.With(logging.TenantFields(result.GuildID, tenant.LeagueID)...)

	entries, fetchErr := s.fetch(ctx, leagueID)
	if fetchErr != nil {
		result.Status = PassFailed
		result.Err = fetchErr
		result.Reason = fetchErr.Reason
		log.Warn("roster fetch failed, store untouched", zap.String("reason", fetchErr.Reason), zap.Error(fetchErr.Err))
		return nil
	}

	if err := s.archive.Store(ctx, result.GuildID, leagueID, entries); err != nil {
		log.Warn("roster snapshot archive failed", zap.Error(err))
	}

	seen := make(map[int]int64, len(entries))
	reported := make(map[int]bool)
	for _, entry := range entries {
		number, ok := entry.AssignedNumber()
		if !ok {
			result.Unassigned++
			continue
		}
		if prev, dup := seen[number]; dup && prev != entry.ExternalMemberID {
			if !reported[number] {
				reported[number] = true
				result.Duplicates = append(result.Duplicates, number)
			}
			log.Warn("roster assigns one number to several members, last entry wins",
				zap.Int("number", number),
				zap.Int64("previous_member", prev),
				zap.Int64("member", entry.ExternalMemberID))
		}
		seen[number] = entry.ExternalMemberID

		outcome, err := s.applier.UpsertSynced(ctx, result.GuildID, number, entry.ExternalMemberID, entry.DisplayName)
		if err != nil {
			log.Error("sync upsert failed, aborting pass", zap.Int("number", number), zap.Error(err))
			return s.fail(result, err)
		}
		switch outcome.Result {
		case models.SyncCreated:
			result.Created++
		case models.SyncUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	result.Status = PassSucceeded
	log.Info("roster sync pass finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("unassigned", result.Unassigned))
	return nil
}

func (s *RosterSyncService) fetch(ctx context.Context, leagueID int64) ([]models.RosterEntry, *common.FetchError) {
	if s.fetcher == nil {
		return nil, &common.FetchError{LeagueID: leagueID, Reason: reasonNoCredentials}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	entries, err := s.fetcher.FetchRoster(fetchCtx, leagueID)
	if err != nil {
		var fe *common.FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		reason := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timed out"
		}
		return nil, &common.FetchError{LeagueID: leagueID, Reason: reason, Err: err}
	}
	if len(entries) == 0 {
		return nil, &common.FetchError{LeagueID: leagueID, Reason: "empty roster"}
	}
	return entries, nil
}

func (s *RosterSyncService) fail(result *PassResult, err error) error {
	result.Status = PassFailed
	result.Err = err
	result.Reason = err.Error()
	if !common.IsStorageError(err) {
		err = common.NewStorageError(fmt.Sprintf("sync guild %d", result.GuildID), err)
		result.Err = err
	}
	return err
}

func (s *RosterSyncService) record(result *PassResult) {
	s.status.Record(result)
	s.metrics.SyncPassesTotal.WithLabelValues(string(result.Status)).Inc()
	if result.Status != PassSkipped {
		s.metrics.SyncPassDuration.Observe(result.Duration().Seconds())
	}
}

// SyncStatusTracker remembers the last pass per guild.
type SyncStatusTracker struct {
	mu   sync.RWMutex
	last map[int64]PassResult
}

func NewSyncStatusTracker() *SyncStatusTracker {
	return &SyncStatusTracker{last: make(map[int64]PassResult)}
}

func (t *SyncStatusTracker) Record(result *PassResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[result.GuildID] = *result
}

func (t *SyncStatusTracker) Last(guildID int64) (PassResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.last[guildID]
	return r, ok
}

// keyedMutex serializes passes per guild.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	mu      sync.Mutex
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyedEntry)}
}

func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.waiters++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.waiters--
		if e.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
