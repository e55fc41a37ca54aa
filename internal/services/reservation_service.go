package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carnumbers/internal/caching"
	"carnumbers/internal/common"
	"carnumbers/internal/iracing"
	"carnumbers/internal/metrics"
	"carnumbers/internal/models"
	"carnumbers/internal/repositories"

	"go.uber.org/zap"
)

// ClaimRequest is a member asking for a number.
type ClaimRequest struct {
	GuildID          int64   `json:"-"`
	Number           int     `json:"car_number"`
	ClaimantID       int64   `json:"-"`
	ClaimantName     *string `json:"claimant_name,omitempty"`
	ExternalMemberID *int64  `json:"external_member_id,omitempty"`
	ExternalName     *string `json:"external_name,omitempty"`
}

// ReservationService wraps the reservation store with range checks,
// availability cache invalidation and best-effort identity verification.
type ReservationService interface {
	Claim(ctx context.Context, req *ClaimRequest) (*models.Reservation, error)
	Release(ctx context.Context, guildID int64, number int, requestedBy int64, authorized bool) (bool, error)
	UpsertSynced(ctx context.Context, guildID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error)
	Link(ctx context.Context, guildID, claimantID, externalMemberID int64, externalName *string) (int, error)
	Get(ctx context.Context, guildID int64, number int) (*models.Reservation, error)
	ListByTenant(ctx context.Context, guildID int64) ([]*models.Reservation, error)
	ListByClaimant(ctx context.Context, guildID, claimantID int64) ([]*models.Reservation, error)
	Stats(ctx context.Context, guildID int64) (*models.ReservationStats, error)

	// Wait blocks until background verifications have finished.
	Wait()
}

type ReservationServiceDeps struct {
	Reservations  repositories.ReservationRepository
	Tenants       repositories.TenantRepository
	Cache         caching.CacheService
	Lookup        iracing.MemberLookup
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	VerifyTimeout time.Duration
}

type reservationService struct {
	repo          repositories.ReservationRepository
	tenants       repositories.TenantRepository
	cache         caching.CacheService
	lookup        iracing.MemberLookup
	metrics       *metrics.Metrics
	logger        *zap.Logger
	verifyTimeout time.Duration
	verifying     sync.WaitGroup
}

func NewReservationService(deps ReservationServiceDeps) ReservationService {
	s := &reservationService{
		repo:          deps.Reservations,
		tenants:       deps.Tenants,
		cache:         deps.Cache,
		lookup:        deps.Lookup,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		verifyTimeout: deps.VerifyTimeout,
	}
	if s.cache == nil {
		s.cache = caching.NewNopCacheService()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.verifyTimeout <= 0 {
		s.verifyTimeout = 5 * time.Second
	}
	return s
}

func (s *reservationService) Claim(ctx context.Context, req *ClaimRequest) (*models.Reservation, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: claim request is required", common.ErrInvalidInput)
	}
	if req.Number < 0 {
		return nil, common.ErrOutOfRange
	}

	tenant, err := loadTenantOrDefault(ctx, s.tenants, req.GuildID)
	if err != nil {
		return nil, err
	}
	if !tenant.InRange(req.Number) {
		s.metrics.ClaimsTotal.WithLabelValues("out_of_range").Inc()
		return nil, common.ErrOutOfRange
	}

	res, err := s.repo.Claim(ctx, repositories.ClaimParams{
		TenantID:         req.GuildID,
		Number:           req.Number,
		ClaimantID:       req.ClaimantID,
		ClaimantName:     req.ClaimantName,
		ExternalMemberID: req.ExternalMemberID,
		ExternalName:     req.ExternalName,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
		} else {
			s.metrics.ClaimsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
	s.invalidate(ctx, req.GuildID)
	s.logger.Info("number claimed",
		zap.Int64("guild_id", req.GuildID),
		zap.Int("number", req.Number),
		zap.Int64("claimant_id", req.ClaimantID))

	if req.ExternalMemberID != nil && req.ExternalName == nil && s.lookup != nil {
		s.verifyInBackground(req.GuildID, req.ClaimantID, *req.ExternalMemberID)
	}
	return res, nil
}

// verifyInBackground resolves the external display name off the request
// path. Failures only log; the claim has already been committed.
func (s *reservationService) verifyInBackground(guildID, claimantID, externalMemberID int64) {
	s.verifying.Add(1)
	go func() {
		defer s.verifying.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.verifyTimeout)
		defer cancel()

		log := s.logger.With(zap.Int64("guild_id", guildID), zap.Int64("external_member_id", externalMemberID))
		member, err := s.lookup.LookupMember(ctx, externalMemberID)
		if err != nil {
			log.Warn("member verification failed", zap.Error(err))
			return
		}

		name := member.DisplayName
		if _, err := s.repo.Link(ctx, guildID, claimantID, externalMemberID, &name); err != nil {
			log.Warn("storing verified member name failed", zap.Error(err))
			return
		}
		s.invalidate(ctx, guildID)
	}()
}

func (s *reservationService) Wait() {
	s.verifying.Wait()
}

func (s *reservationService) Release(ctx context.Context, guildID int64, number int, requestedBy int64, authorized bool) (bool, error) {
	released, err := s.repo.Release(ctx, guildID, number, requestedBy, authorized)
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		s.metrics.ReleasesTotal.WithLabelValues("unauthorized").Inc()
		return false, err
	case err != nil:
		s.metrics.ReleasesTotal.WithLabelValues("error").Inc()
		return false, err
	case !released:
		s.metrics.ReleasesTotal.WithLabelValues("not_found").Inc()
		return false, nil
	}

	s.metrics.ReleasesTotal.WithLabelValues("released").Inc()
	s.invalidate(ctx, guildID)
	s.logger.Info("number released",
		zap.Int64("guild_id", guildID),
		zap.Int("number", number),
		zap.Int64("requested_by", requestedBy),
		zap.Bool("authorized", authorized))
	return true, nil
}

func (s *reservationService) UpsertSynced(ctx context.Context, guildID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error) {
	outcome, err := s.repo.UpsertSynced(ctx, guildID, number, externalMemberID, externalName)
	if err != nil {
		return nil, err
	}

	s.metrics.SyncedRowsTotal.WithLabelValues(string(outcome.Result)).Inc()
	if outcome.Result != models.SyncUnchanged {
		s.invalidate(ctx, guildID)
	}
	return outcome, nil
}

func (s *reservationService) Link(ctx context.Context, guildID, claimantID, externalMemberID int64, externalName *string) (int, error) {
	if externalMemberID <= 0 {
		return 0, fmt.Errorf("%w: external member id must be positive", common.ErrInvalidInput)
	}

	updated, err := s.repo.Link(ctx, guildID, claimantID, externalMemberID, externalName)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.invalidate(ctx, guildID)
	}
	return updated, nil
}

func (s *reservationService) Get(ctx context.Context, guildID int64, number int) (*models.Reservation, error) {
	return s.repo.Get(ctx, guildID, number)
}

func (s *reservationService) ListByTenant(ctx context.Context, guildID int64) ([]*models.Reservation, error) {
	return s.repo.ListByTenant(ctx, guildID)
}

func (s *reservationService) ListByClaimant(ctx context.Context, guildID, claimantID int64) ([]*models.Reservation, error) {
	return s.repo.ListByClaimant(ctx, guildID, claimantID)
}

func (s *reservationService) Stats(ctx context.Context, guildID int64) (*models.ReservationStats, error) {
	return s.repo.Stats(ctx, guildID)
}

func (s *reservationService) invalidate(ctx context.Context, guildID int64) {
	if err := s.cache.InvalidateTenantCache(ctx, guildID); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Int64("guild_id", guildID), zap.Error(err))
	}
}

// loadTenantOrDefault returns the stored guild configuration, or the
// default range for guilds that never ran setup.
func loadTenantOrDefault(ctx context.Context, tenants repositories.TenantRepository, guildID int64) (*models.Tenant, error) {
	tenant, err := tenants.GetByID(ctx, guildID)
	if errors.Is(err, common.ErrNotFound) {
		return models.DefaultTenant(guildID), nil
	}
	if err != nil {
		return nil, err
	}
	return tenant, nil
}
