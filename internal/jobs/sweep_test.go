package jobs

import (
	"context"
	"errors"
	"testing"

	"carnumbers/internal/common"
	"carnumbers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSweepAll_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	tenants := &MockTenantRepository{}
	syncer := &MockSyncer{}
	tenants.On("List", ctx).Return([]*models.Tenant{{ID: 1}, {ID: 2}, {ID: 3}}, nil)

	syncer.On("SyncTenant", ctx, int64(1)).Return(&PassResult{GuildID: 1, Status: PassSucceeded, Created: 2}, nil)
	syncer.On("SyncTenant", ctx, int64(2)).Return(&PassResult{
		GuildID: 2,
		Status:  PassFailed,
		Reason:  "request failed",
		Err:     &common.FetchError{LeagueID: 9, Reason: "request failed"},
	}, nil)
	syncer.On("SyncTenant", ctx, int64(3)).Return(&PassResult{GuildID: 3, Status: PassSucceeded}, nil)

	report, err := NewSweeper(tenants, syncer, 2, nil, nil).SweepAll(ctx)

	require.NoError(t, err)
	assert.True(t, report.PartialFailure())
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)
	for i, r := range report.Results {
		assert.Equal(t, int64(i+1), r.GuildID)
	}
	syncer.AssertExpectations(t)
}

func TestSweepAll_StorageErrorAndPanic(t *testing.T) {
	ctx := context.Background()
	tenants := &MockTenantRepository{}
	syncer := &MockSyncer{}
	tenants.On("List", ctx).Return([]*models.Tenant{{ID: 1}, {ID: 2}, {ID: 3}}, nil)

	syncer.On("SyncTenant", ctx, int64(1)).Return(&PassResult{GuildID: 1, Status: PassFailed}, common.NewStorageError("upsert", errors.New("down")))
	syncer.On("SyncTenant", ctx, int64(2)).Run(func(mock.Arguments) { panic("boom") })
	syncer.On("SyncTenant", ctx, int64(3)).Return(&PassResult{GuildID: 3, Status: PassSkipped}, nil)

	report, err := NewSweeper(tenants, syncer, 1, nil, nil).SweepAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, common.IsStorageError(report.Results[0].Err))
	assert.Contains(t, report.Results[1].Reason, "panic")
}

func TestSweepAll_ListFailure(t *testing.T) {
	ctx := context.Background()
	tenants := &MockTenantRepository{}
	tenants.On("List", ctx).Return(nil, common.NewStorageError("list tenants", errors.New("down")))

	report, err := NewSweeper(tenants, &MockSyncer{}, 4, nil, nil).SweepAll(ctx)

	assert.Nil(t, report)
	assert.True(t, common.IsStorageError(err))
}

func TestSweepAll_NoGuilds(t *testing.T) {
	ctx := context.Background()
	tenants := &MockTenantRepository{}
	tenants.On("List", ctx).Return([]*models.Tenant{}, nil)

	report, err := NewSweeper(tenants, &MockSyncer{}, 4, nil, nil).SweepAll(ctx)

	require.NoError(t, err)
	assert.False(t, report.PartialFailure())
	assert.Empty(t, report.Results)
}
