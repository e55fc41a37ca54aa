package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"carnumbers/internal/iracing"
	"carnumbers/internal/models"
	"carnumbers/internal/repositories"

	"github.com/stretchr/testify/mock"
)

type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Claim(ctx context.Context, params repositories.ClaimParams) (*models.Reservation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Release(ctx context.Context, tenantID int64, number int, requestedBy int64, authorized bool) (bool, error) {
	args := m.Called(ctx, tenantID, number, requestedBy, authorized)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) UpsertSynced(ctx context.Context, tenantID int64, number int, externalMemberID int64, externalName string) (*models.SyncOutcome, error) {
	args := m.Called(ctx, tenantID, number, externalMemberID, externalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncOutcome), args.Error(1)
}

func (m *MockReservationRepository) Link(ctx context.Context, tenantID, claimantID, externalMemberID int64, externalName *string) (int, error) {
	args := m.Called(ctx, tenantID, claimantID, externalMemberID, externalName)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationRepository) Get(ctx context.Context, tenantID int64, number int) (*models.Reservation, error) {
	args := m.Called(ctx, tenantID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListByClaimant(ctx context.Context, tenantID, claimantID int64) ([]*models.Reservation, error) {
	args := m.Called(ctx, tenantID, claimantID)
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ClaimedNumbers(ctx context.Context, tenantID int64) ([]int, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockReservationRepository) Stats(ctx context.Context, tenantID int64) (*models.ReservationStats, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationStats), args.Error(1)
}

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
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

type MockAuditLogsRepository struct {
	mock.Mock
}

func (m *MockAuditLogsRepository) Recent(ctx context.Context, tenantID int64, limit int) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Generation(ctx context.Context, guildID int64) (int64, error) {
	args := m.Called(ctx, guildID)
	gen, _ := args.Get(0).(int64)
	return gen, args.Error(1)
}

func (m *MockCacheService) GetAvailable(ctx context.Context, guildID, gen int64) ([]int, bool, error) {
	args := m.Called(ctx, guildID, gen)
	numbers, _ := args.Get(0).([]int)
	return numbers, args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetAvailable(ctx context.Context, guildID, gen int64, numbers []int, ttl time.Duration) error {
	args := m.Called(ctx, guildID, gen, numbers, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTenantCache(ctx context.Context, guildID int64) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	args := m.Called()
	return args.Error(0)
}

// memoryCache keeps generation-scoped values in process, mirroring the
// Redis cache's semantics.
type memoryCache struct {
	mu     sync.Mutex
	gens   map[int64]int64
	values map[string][]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{gens: map[int64]int64{}, values: map[string][]int{}}
}

func memoryKey(guildID, gen int64) string {
	return fmt.Sprintf("%d:%d", guildID, gen)
}

func (c *memoryCache) Generation(_ context.Context, guildID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[guildID], nil
}

func (c *memoryCache) GetAvailable(_ context.Context, guildID, gen int64) ([]int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	numbers, ok := c.values[memoryKey(guildID, gen)]
	return numbers, ok, nil
}

func (c *memoryCache) SetAvailable(_ context.Context, guildID, gen int64, numbers []int, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[memoryKey(guildID, gen)] = append([]int(nil), numbers...)
	return nil
}

func (c *memoryCache) InvalidateTenantCache(_ context.Context, guildID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, memoryKey(guildID, c.gens[guildID]))
	c.gens[guildID]++
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Close() error { return nil }

type MockMemberLookup struct {
	mock.Mock
}

func (m *MockMemberLookup) LookupMember(ctx context.Context, custID int64) (*iracing.Member, error) {
	args := m.Called(ctx, custID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*iracing.Member), args.Error(1)
}

type MockLeagueLookup struct {
	mock.Mock
}

func (m *MockLeagueLookup) LookupLeague(ctx context.Context, leagueID int64) (*iracing.League, error) {
	args := m.Called(ctx, leagueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*iracing.League), args.Error(1)
}

type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, contentType)
	return args.Error(0)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

func (m *MockMinioService) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}
