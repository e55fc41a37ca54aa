package jobs

import (
	"context"
	"fmt"
	"time"

	"carnumbers/internal/metrics"
	"carnumbers/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepReport holds one result per guild, in the order the guilds were listed.
type SweepReport struct {
	Results    []*PassResult `json:"results"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// PartialFailure reports whether at least one guild failed.
func (r *SweepReport) PartialFailure() bool {
	return r.Failed > 0
}

type Sweeper struct {
	tenants     repositories.TenantRepository
	syncer      Syncer
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewSweeper(tenants repositories.TenantRepository, syncer Syncer, concurrency int, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if concurrency <= 0 {
		concurrency = 4
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		tenants:     tenants,
		syncer:      syncer,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

// SweepAll syncs every configured guild. One guild's failure never stops
// the others; only listing the guilds can fail the sweep as a whole.
func (s *Sweeper) SweepAll(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: time.Now()}

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		s.logger.Error("listing guilds for sweep failed", zap.Error(err))
		return nil, fmt.Errorf("list guilds: %w", err)
	}

	report.Results = make([]*PassResult, len(tenants))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, tenant := range tenants {
		g.Go(func() error {
			report.Results[i] = s.syncOne(ctx, tenant.ID)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		switch r.Status {
		case PassSucceeded:
			report.Succeeded++
		case PassFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}
	report.FinishedAt = time.Now()

	s.metrics.SweepDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	s.metrics.SweepFailures.Set(float64(report.Failed))
	s.logger.Info("sync sweep finished",
		zap.Int("guilds", len(tenants)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *Sweeper) syncOne(ctx context.Context, guildID int64) (result *PassResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("sync pass panicked", zap.Int64("guild_id", guildID), zap.Any("panic", rec))
			result = &PassResult{
				GuildID:    guildID,
				Status:     PassFailed,
				Reason:     fmt.Sprintf("panic: %v", rec),
				Err:        fmt.Errorf("sync guild %d panicked: %v", guildID, rec),
				FinishedAt: time.Now(),
			}
		}
	}()

	result, err := s.syncer.SyncTenant(ctx, guildID)
	if result == nil {
		result = &PassResult{GuildID: guildID, Status: PassFailed, FinishedAt: time.Now()}
	}
	if err != nil {
		result.Status = PassFailed
		result.Err = err
		if result.Reason == "" {
			result.Reason = err.Error()
		}
		s.logger.Error("sync pass failed", zap.Int64("guild_id", guildID), zap.Error(err))
	}
	return result
}
