package services

import (
	"context"
	"time"

	"carnumbers/internal/caching"
	"carnumbers/internal/common"
	"carnumbers/internal/metrics"
	"carnumbers/internal/repositories"

	"go.uber.org/zap"
)

// AvailabilityService answers "which numbers in the guild's range are free".
type AvailabilityService interface {
	Available(ctx context.Context, guildID int64) ([]int, error)
	AvailableBetween(ctx context.Context, guildID int64, from, to int) ([]int, error)
}

type availabilityService struct {
	reservations repositories.ReservationRepository
	tenants      repositories.TenantRepository
	cache        caching.CacheService
	ttl          time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewAvailabilityService(
	reservations repositories.ReservationRepository,
	tenants repositories.TenantRepository,
	cache caching.CacheService,
	ttl time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) AvailabilityService {
	if cache == nil {
		cache = caching.NewNopCacheService()
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &availabilityService{
		reservations: reservations,
		tenants:      tenants,
		cache:        cache,
		ttl:          ttl,
		metrics:      m,
		logger:       logger,
	}
}

func (s *availabilityService) Available(ctx context.Context, guildID int64) ([]int, error) {
	// The generation is read before the store: a mutation committing during
	// the recompute advances it and strands the write below.
	gen, err := s.cache.Generation(ctx, guildID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("availability cache generation read failed", zap.Int64("guild_id", guildID), zap.Error(err))
	}

	if cacheable {
		cached, ok, err := s.cache.GetAvailable(ctx, guildID, gen)
		if err != nil {
			s.logger.Warn("availability cache read failed", zap.Int64("guild_id", guildID), zap.Error(err))
		}
		if ok {
			s.metrics.CacheHits.Inc()
			return cached, nil
		}
	}
	s.metrics.CacheMisses.Inc()

	tenant, err := loadTenantOrDefault(ctx, s.tenants, guildID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.reservations.ClaimedNumbers(ctx, guildID)
	if err != nil {
		return nil, err
	}

	taken := make(map[int]struct{}, len(claimed))
	for _, n := range claimed {
		taken[n] = struct{}{}
	}
	available := make([]int, 0, tenant.MaxNumber-tenant.MinNumber+1)
	for n := tenant.MinNumber; n <= tenant.MaxNumber; n++ {
		if _, used := taken[n]; !used {
			available = append(available, n)
		}
	}

	if cacheable && s.ttl > 0 {
		if err := s.cache.SetAvailable(ctx, guildID, gen, available, s.ttl); err != nil {
			s.logger.Warn("availability cache write failed", zap.Int64("guild_id", guildID), zap.Error(err))
		}
	}
	return available, nil
}

// AvailableBetween narrows Available to [from, to].
func (s *availabilityService) AvailableBetween(ctx context.Context, guildID int64, from, to int) ([]int, error) {
	if from < 0 || to < from {
		return nil, common.ErrInvalidRange
	}

	all, err := s.Available(ctx, guildID)
	if err != nil {
		return nil, err
	}
	result := make([]int, 0)
	for _, n := range all {
		if n >= from && n <= to {
			result = append(result, n)
		}
	}
	return result, nil
}
