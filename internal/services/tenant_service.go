package services

import (
	"context"
	"fmt"
	"time"

	"carnumbers/internal/caching"
	"carnumbers/internal/common"
	"carnumbers/internal/iracing"
	"carnumbers/internal/models"
	"carnumbers/internal/repositories"

	"go.uber.org/zap"
)

type TenantService interface {
	Configure(ctx context.Context, actorID int64, req *ConfigureTenantRequest) (*ConfigureResult, error)
	Get(ctx context.Context, guildID int64) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// ConfigureTenantRequest changes a guild's setup. Nil fields keep the
// current value; ClearLeague unlinks the league.
type ConfigureTenantRequest struct {
	GuildID               int64  `json:"-"`
	LeagueID              *int64 `json:"league_id,omitempty"`
	ClearLeague           bool   `json:"clear_league,omitempty"`
	MinNumber             *int   `json:"min_number,omitempty"`
	MaxNumber             *int   `json:"max_number,omitempty"`
	AdminRoleID           *int64 `json:"admin_role_id,omitempty"`
	AnnouncementChannelID *int64 `json:"announcement_channel_id,omitempty"`
}

// ConfigureResult is the saved configuration plus the outcome of the
// league check. LeagueVerified is false when the league could not be
// confirmed; the configuration is saved either way.
type ConfigureResult struct {
	*models.Tenant
	LeagueVerified bool   `json:"league_verified"`
	LeagueName     string `json:"league_name,omitempty"`
}

type tenantService struct {
	tenantRepo    repositories.TenantRepository
	cache         caching.CacheService
	leagues       iracing.LeagueLookup
	verifyTimeout time.Duration
	logger        *zap.Logger
}

// NewTenantService builds the service. leagues may be nil, in which case
// leagues are never verified.
func NewTenantService(tenantRepo repositories.TenantRepository, cache caching.CacheService, leagues iracing.LeagueLookup, verifyTimeout time.Duration, logger *zap.Logger) TenantService {
	if cache == nil {
		cache = caching.NewNopCacheService()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}
	return &tenantService{
		tenantRepo:    tenantRepo,
		cache:         cache,
		leagues:       leagues,
		verifyTimeout: verifyTimeout,
		logger:        logger,
	}
}

func (s *tenantService) Configure(ctx context.Context, actorID int64, req *ConfigureTenantRequest) (*ConfigureResult, error) {
	if req == nil || req.GuildID <= 0 {
		return nil, fmt.Errorf("%w: guild id is required", common.ErrInvalidInput)
	}
	if req.LeagueID != nil && *req.LeagueID <= 0 {
		return nil, fmt.Errorf("%w: league id must be positive", common.ErrInvalidInput)
	}

	tenant, err := loadTenantOrDefault(ctx, s.tenantRepo, req.GuildID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.ClearLeague:
		tenant.LeagueID = nil
	case req.LeagueID != nil:
		tenant.LeagueID = req.LeagueID
	}
	if req.MinNumber != nil {
		tenant.MinNumber = *req.MinNumber
	}
	if req.MaxNumber != nil {
		tenant.MaxNumber = *req.MaxNumber
	}
	if req.AdminRoleID != nil {
		tenant.AdminRoleID = req.AdminRoleID
	}
	if req.AnnouncementChannelID != nil {
		tenant.AnnouncementChannelID = req.AnnouncementChannelID
	}

	if err := common.ValidateNumberRange(tenant.MinNumber, tenant.MaxNumber, models.MaxAllowedNumber); err != nil {
		return nil, err
	}

	saved, err := s.tenantRepo.Upsert(ctx, tenant, &actorID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateTenantCache(ctx, saved.ID); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Int64("guild_id", saved.ID), zap.Error(err))
	}
	s.logger.Info("guild configured",
		zap.Int64("guild_id", saved.ID),
		zap.Int64p("league_id", saved.LeagueID),
		zap.Int("min_number", saved.MinNumber),
		zap.Int("max_number", saved.MaxNumber),
		zap.Int64("actor_id", actorID))

	result := &ConfigureResult{Tenant: saved}
	if saved.LeagueID != nil {
		result.LeagueName, result.LeagueVerified = s.verifyLeague(ctx, *saved.LeagueID)
	}
	return result, nil
}

func (s *tenantService) verifyLeague(ctx context.Context, leagueID int64) (string, bool) {
	if s.leagues == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	league, err := s.leagues.LookupLeague(ctx, leagueID)
	if err != nil {
		s.logger.Warn("could not verify league", zap.Int64("league_id", leagueID), zap.Error(err))
		return "", false
	}
	return league.LeagueName, true
}

func (s *tenantService) Get(ctx context.Context, guildID int64) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, guildID)
}

func (s *tenantService) List(ctx context.Context) ([]*models.Tenant, error) {
	return s.tenantRepo.List(ctx)
}
