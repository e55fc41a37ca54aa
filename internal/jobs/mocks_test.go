package jobs

import (
	"context"

	"carnumbers/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Upsert(ctx context.Context, tenant *models.Tenant, actorID *int64) (*models.Tenant, error) {
	args := m.Called(ctx, tenant, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context) ([]*models.Tenant, error) {
	args := m.Called(ctx)
	tenants, _ := args.Get(0).([]*models.Tenant)
	return tenants, args.Error(1)
}

type MockRosterApplier struct {
	mock.Mock
}

func (m *MockRosterApplier) UpsertSynced(ctx context.Context, guildID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error) {
	args := m.Called(ctx, guildID, number, externalMemberID, externalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncOutcome), args.Error(1)
}

type MockRosterFetcher struct {
	mock.Mock
}

func (m *MockRosterFetcher) FetchRoster(ctx context.Context, leagueID int64) ([]models.RosterEntry, error) {
	args := m.Called(ctx, leagueID)
	entries, _ := args.Get(0).([]models.RosterEntry)
	return entries, args.Error(1)
}

type MockSnapshotArchive struct {
	mock.Mock
}

func (m *MockSnapshotArchive) Store(ctx context.Context, guildID, leagueID int64, entries []models.RosterEntry) error {
	args := m.Called(ctx, guildID, leagueID, entries)
	return args.Error(0)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncTenant(ctx context.Context, guildID int64) (*PassResult, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PassResult), args.Error(1)
}

func outcome(result models.SyncResult) *models.SyncOutcome {
	return &models.SyncOutcome{Reservation: &models.Reservation{}, Result: result}
}

func num(n int) *int { return &n }

func leagueTenant(guildID, leagueID int64) *models.Tenant {
	return &models.Tenant{ID: guildID, LeagueID: &leagueID, MinNumber: 0, MaxNumber: 999}
}
