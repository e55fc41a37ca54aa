package handlers

import (
	"context"

	"carnumbers/internal/jobs"
	"carnumbers/internal/models"
	"carnumbers/internal/services"

	"github.com/stretchr/testify/mock"
)

type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) Claim(ctx context.Context, req *services.ClaimRequest) (*models.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationService) Release(ctx context.Context, guildID int64, number int, requestedBy int64, authorized bool) (bool, error) {
	args := m.Called(ctx, guildID, number, requestedBy, authorized)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationService) UpsertSynced(ctx context.Context, guildID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error) {
	args := m.Called(ctx, guildID, number, externalMemberID, externalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncOutcome), args.Error(1)
}

func (m *MockReservationService) Link(ctx context.Context, guildID, claimantID, externalMemberID int64, externalName *string) (int, error) {
	args := m.Called(ctx, guildID, claimantID, externalMemberID, externalName)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) Get(ctx context.Context, guildID int64, number int) (*models.Reservation, error) {
	args := m.Called(ctx, guildID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationService) ListByTenant(ctx context.Context, guildID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, guildID)
	list, _ := args.Get(0).([]*models.Reservation)
	return list, args.Error(1)
}

func (m *MockReservationService) ListByClaimant(ctx context.Context, guildID, claimantID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, guildID, claimantID)
	list, _ := args.Get(0).([]*models.Reservation)
	return list, args.Error(1)
}

func (m *MockReservationService) Stats(ctx context.Context, guildID int64) (*models.ReservationStats, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationStats), args.Error(1)
}

func (m *MockReservationService) Wait() {}

type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) Available(ctx context.Context, guildID int64) ([]int, error) {
	args := m.Called(ctx, guildID)
	numbers, _ := args.Get(0).([]int)
	return numbers, args.Error(1)
}

func (m *MockAvailabilityService) AvailableBetween(ctx context.Context, guildID int64, from, to int) ([]int, error) {
	args := m.Called(ctx, guildID, from, to)
	numbers, _ := args.Get(0).([]int)
	return numbers, args.Error(1)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) Configure(ctx context.Context, actorID int64, req *services.ConfigureTenantRequest) (*services.ConfigureResult, error) {
	args := m.Called(ctx, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ConfigureResult), args.Error(1)
}

func (m *MockTenantService) Get(ctx context.Context, guildID int64) (*models.Tenant, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) List(ctx context.Context) ([]*models.Tenant, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*models.Tenant)
	return list, args.Error(1)
}

type MockAuditLogsService struct {
	mock.Mock
}

func (m *MockAuditLogsService) Recent(ctx context.Context, guildID int64, limit int) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, guildID, limit)
	list, _ := args.Get(0).([]*models.AuditEntry)
	return list, args.Error(1)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncTenant(ctx context.Context, guildID int64) (*jobs.PassResult, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.PassResult), args.Error(1)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }
