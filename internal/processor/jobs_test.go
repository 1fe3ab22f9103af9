package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type jobFixture struct {
	tenants   *repository.TenantRepository
	customers *repository.CustomerRepository
	jobs      *repository.MessageJobRepository
	provider  *stubProvider
	tenant    *model.Tenant
	processor *JobProcessor
}

func setupJobs(t *testing.T, smsAllocated, smsUsed int, cfg JobProcessorConfig) *jobFixture {
	db := setupTestDB(t)
	f := &jobFixture{
		tenants:   repository.NewTenantRepository(db),
		customers: repository.NewCustomerRepository(db),
		jobs:      repository.NewMessageJobRepository(db),
		provider:  &stubProvider{id: "pm-1"},
	}

	var err error
	f.tenant, err = f.tenants.Create(context.Background(), &model.Tenant{
		Name:     "Acme",
		Status:   model.TenantActive,
		SMSQuota: model.Quota{Allocated: smsAllocated, Used: smsUsed},
	})
	require.NoError(t, err)

	sms := channel.NewAdapter(model.ChannelSMS, f.tenants, channel.NewQuotaGate(f.tenants), f.provider, channel.Options{CountryCode: "20"})
	f.processor = NewJobProcessor(f.jobs, f.customers, map[model.Channel]channel.Sender{model.ChannelSMS: sms}, nil, cfg)
	f.processor.now = func() time.Time { return fixedNow }
	return f
}

func (f *jobFixture) customer(t *testing.T, phone string) *model.Customer {
	c, err := f.customers.Create(context.Background(), &model.Customer{TenantID: f.tenant.ID, Name: "Sara", Phone: phone})
	require.NoError(t, err)
	return c
}

func (f *jobFixture) job(t *testing.T, customerID string, ch model.Channel, scheduledAt time.Time) *model.MessageJob {
	j, err := f.jobs.Create(context.Background(), &model.MessageJob{
		TenantID:    f.tenant.ID,
		CustomerID:  customerID,
		Channel:     ch,
		Content:     "Hi Sara, order 1007 confirmed",
		ScheduledAt: scheduledAt,
	})
	require.NoError(t, err)
	return j
}

func (f *jobFixture) reload(t *testing.T, id string) *model.MessageJob {
	j, err := f.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return j
}

func TestTick_SendsDueJob(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	c := f.customer(t, "010 1234 5678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow.Add(-time.Minute))

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusProcessed, got.Status)
	assert.Equal(t, "pm-1", got.ProviderMessageID)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(fixedNow))
	assert.Equal(t, 1, got.Attempts)

	require.Equal(t, 1, f.provider.calls())
	assert.Equal(t, "201012345678", f.provider.sent[0].To)
	assert.Equal(t, "Hi Sara, order 1007 confirmed", f.provider.sent[0].Body)

	tenant, err := f.tenants.Get(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tenant.SMSQuota.Used)
}

func TestTick_QuotaExhausted(t *testing.T) {
	f := setupJobs(t, 5, 5, JobProcessorConfig{MaxAttempts: 3, RetryBackoff: time.Minute})
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "quota exceeded")
	assert.Contains(t, *got.LastError, "5/5")
	assert.Zero(t, f.provider.calls())

	tenant, err := f.tenants.Get(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, tenant.SMSQuota.Used)
}

func TestTick_PhoneMissing(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	c := f.customer(t, "")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "customer phone missing", *got.LastError)
	assert.Equal(t, 1, got.Attempts)
}

func TestTick_FallsBackToRecipient(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	j, err := f.jobs.Create(context.Background(), &model.MessageJob{
		TenantID:    f.tenant.ID,
		CustomerID:  "unknown-customer",
		Channel:     model.ChannelSMS,
		Content:     "hello",
		Recipient:   "01099999999",
		ScheduledAt: fixedNow,
	})
	require.NoError(t, err)

	require.NoError(t, f.processor.Tick(context.Background()))

	assert.Equal(t, model.JobStatusProcessed, f.reload(t, j.ID).Status)
	require.Equal(t, 1, f.provider.calls())
	assert.Equal(t, "201099999999", f.provider.sent[0].To)
}

func TestTick_SkipsFutureJobs(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow.Add(time.Hour))

	require.NoError(t, f.processor.Tick(context.Background()))

	assert.Equal(t, model.JobStatusPending, f.reload(t, j.ID).Status)
	assert.Zero(t, f.provider.calls())
}

func TestTick_ProviderErrorIsTerminalByDefault(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	f.provider.err = &channel.ProviderError{Provider: "stub", Message: "SMS failed: invalid number"}
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "SMS failed: invalid number", *got.LastError)

	// the reserved unit is handed back
	tenant, err := f.tenants.Get(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tenant.SMSQuota.Used)
}

func TestTick_ProviderErrorRetriesWithBackoff(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{MaxAttempts: 3, RetryBackoff: 5 * time.Minute})
	f.provider.err = &channel.ProviderError{Provider: "stub", Message: "SMS provider timed out"}
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, got.ScheduledAt.Equal(fixedNow.Add(5*time.Minute)))

	// second failure doubles the delay
	f.processor.now = func() time.Time { return fixedNow.Add(5 * time.Minute) }
	require.NoError(t, f.processor.Tick(context.Background()))
	got = f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.ScheduledAt.Equal(fixedNow.Add(15*time.Minute)))

	// the last attempt is terminal
	f.processor.now = func() time.Time { return fixedNow.Add(15 * time.Minute) }
	require.NoError(t, f.processor.Tick(context.Background()))
	got = f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
}

func TestTick_UnconfiguredChannel(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelWhatsApp, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "channel not configured")
}

func TestTick_OneFailureDoesNotBlockBatch(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{Workers: 4})
	good := f.customer(t, "01012345678")
	bad := f.customer(t, "")

	var okJobs []*model.MessageJob
	for i := 0; i < 3; i++ {
		okJobs = append(okJobs, f.job(t, good.ID, model.ChannelSMS, fixedNow))
	}
	failing := f.job(t, bad.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	for _, j := range okJobs {
		assert.Equal(t, model.JobStatusProcessed, f.reload(t, j.ID).Status)
	}
	assert.Equal(t, model.JobStatusFailed, f.reload(t, failing.ID).Status)
	assert.Equal(t, 3, f.provider.calls())

	stats := f.processor.Metrics().GetStats()
	assert.Equal(t, int64(3), stats["total_processed"])
	assert.Equal(t, int64(1), stats["total_failed"])
}

func TestTick_BatchIsBounded(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{BatchSize: 2})
	c := f.customer(t, "01012345678")
	for i := 0; i < 3; i++ {
		f.job(t, c.ID, model.ChannelSMS, fixedNow.Add(-time.Duration(i)*time.Minute))
	}

	require.NoError(t, f.processor.Tick(context.Background()))
	assert.Equal(t, 2, f.provider.calls())

	require.NoError(t, f.processor.Tick(context.Background()))
	assert.Equal(t, 3, f.provider.calls())
}

func TestTick_GuardCompletesDeliveredJob(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	_, adapter := setupTestRedis(t)
	guard := NewSendGuard(adapter, DefaultGuardConfig())
	f.processor.guard = guard

	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	// a previous tick delivered the job but never stored the outcome
	claim, err := guard.Acquire(context.Background(), j.ID)
	require.NoError(t, err)
	require.NoError(t, guard.MarkSent(context.Background(), claim, "pm-earlier"))

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusProcessed, got.Status)
	assert.Equal(t, "pm-earlier", got.ProviderMessageID)
	assert.Zero(t, f.provider.calls())
}

func TestTick_GuardRecordsDelivery(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	_, adapter := setupTestRedis(t)
	guard := NewSendGuard(adapter, DefaultGuardConfig())
	f.processor.guard = guard

	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	require.NoError(t, f.processor.Tick(context.Background()))

	id, sent := guard.SentMessageID(context.Background(), j.ID)
	assert.True(t, sent)
	assert.Equal(t, "pm-1", id)
}

// cancellingStore cancels the tick right after the due batch is loaded,
// as a shutdown does while a batch is in flight.
type cancellingStore struct {
	JobStore
	cancel context.CancelFunc
}

func (s *cancellingStore) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error) {
	due, err := s.JobStore.FindDue(ctx, now, limit)
	s.cancel()
	return due, err
}

type failingCustomers struct{}

func (failingCustomers) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	return nil, errors.New("connection refused")
}

func TestTick_CancelledTickLeavesJobsPending(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{Workers: 2})
	c := f.customer(t, "01012345678")
	first := f.job(t, c.ID, model.ChannelSMS, fixedNow)
	second := f.job(t, c.ID, model.ChannelSMS, fixedNow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.jobs = &cancellingStore{JobStore: f.jobs, cancel: cancel}

	require.NoError(t, f.processor.Tick(ctx))

	for _, id := range []string{first.ID, second.ID} {
		got := f.reload(t, id)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Zero(t, got.Attempts)
		assert.Nil(t, got.LastError)
	}
	assert.Zero(t, f.provider.calls())

	// the next tick picks them up
	f.processor.jobs = f.jobs
	require.NoError(t, f.processor.Tick(context.Background()))
	assert.Equal(t, model.JobStatusProcessed, f.reload(t, first.ID).Status)
	assert.Equal(t, model.JobStatusProcessed, f.reload(t, second.ID).Status)
	assert.Equal(t, 2, f.provider.calls())
}

func TestTick_CustomerLookupErrorLeavesJobPending(t *testing.T) {
	f := setupJobs(t, 10, 0, JobProcessorConfig{})
	c := f.customer(t, "01012345678")
	j := f.job(t, c.ID, model.ChannelSMS, fixedNow)
	f.processor.customers = failingCustomers{}

	require.NoError(t, f.processor.Tick(context.Background()))

	got := f.reload(t, j.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Nil(t, got.LastError)
	assert.Zero(t, f.provider.calls())
}
