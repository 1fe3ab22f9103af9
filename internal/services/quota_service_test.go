package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaService(t *testing.T) {
	tenants := repository.NewTenantRepository(setupTestDB(t))
	svc := NewQuotaService(tenants)
	ctx := context.Background()

	tenant, err := tenants.Create(ctx, &model.Tenant{
		Name:     "Acme",
		Status:   model.TenantActive,
		SMSQuota: model.Quota{Allocated: 5, Used: 5},
	})
	require.NoError(t, err)

	st, err := svc.Get(ctx, tenant.ID, model.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Allocated)
	assert.Equal(t, 5, st.Used)
	assert.Equal(t, 0, st.Remaining)

	reset := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	st, err = svc.Allocate(ctx, tenant.ID, model.ChannelSMS, 20, &reset)
	require.NoError(t, err)
	assert.Equal(t, 20, st.Allocated)
	assert.Equal(t, 15, st.Remaining)
	require.NotNil(t, st.ResetDate)
	assert.True(t, reset.Equal(*st.ResetDate))

	st, err = svc.Reset(ctx, tenant.ID, model.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, 20, st.Remaining)

	// whatsapp is tracked separately
	st, err = svc.Get(ctx, tenant.ID, model.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Allocated)
}

func TestQuotaService_Validation(t *testing.T) {
	tenants := repository.NewTenantRepository(setupTestDB(t))
	svc := NewQuotaService(tenants)
	ctx := context.Background()

	_, err := svc.Get(ctx, "t1", "fax")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Allocate(ctx, "t1", model.ChannelSMS, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Allocate(ctx, "missing", model.ChannelSMS, 10, nil)
	assert.ErrorIs(t, err, repository.ErrTenantNotFound)

	_, err = svc.Reset(ctx, "missing", model.ChannelSMS)
	assert.ErrorIs(t, err, repository.ErrTenantNotFound)
}

type stubJobs struct {
	got model.JobFilter
}

func (s *stubJobs) List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error) {
	s.got = f
	return nil, nil
}

func TestJobService_List(t *testing.T) {
	repo := &stubJobs{}
	svc := NewJobService(repo)
	ctx := context.Background()

	_, err := svc.List(ctx, model.JobFilter{TenantID: "t1", Status: model.JobStatusFailed, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 200, repo.got.Limit)

	_, err = svc.List(ctx, model.JobFilter{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.List(ctx, model.JobFilter{TenantID: "t1", Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
