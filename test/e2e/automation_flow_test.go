package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/message-automation/internal/cart"
	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/condition"
	"github.com/nimasrn/message-automation/internal/engine"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/processor"
	"github.com/nimasrn/message-automation/internal/queue"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/services"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/nimasrn/message-automation/pkg/redis"
	"github.com/nimasrn/message-automation/test/fixtures"
	"github.com/nimasrn/message-automation/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEnvironment struct {
	DB           *pg.DB
	Redis        *miniredis.Miniredis
	RedisAdapter redis.RedisAdapter
	QueueConfig  queue.QueueConfig

	Tenants   *repository.TenantRepository
	Jobs      *repository.MessageJobRepository
	Carts     *repository.CartRepository
	Customers *repository.CustomerRepository

	Dispatcher *engine.Dispatcher
	Flows      *services.FlowService
	Events     *services.EventService
	Processor  *processor.JobProcessor
	Detector   *cart.Detector

	SMS      *helpers.StubProvider
	WhatsApp *helpers.StubProvider
	Tenant   *model.Tenant
}

// setupE2EEnvironment wires the api and engine halves the way the two
// binaries do, with stub providers at the edge.
func setupE2EEnvironment(t *testing.T, queued bool) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	env := &TestEnvironment{
		DB:           db,
		Redis:        mr,
		RedisAdapter: adapter,
		QueueConfig: queue.QueueConfig{
			Name:              "test:events",
			ConsumerGroup:     "test-engine",
			ConsumerName:      "test",
			MaxRetries:        3,
			VisibilityTimeout: 5 * time.Second,
			PollInterval:      50 * time.Millisecond,
			BatchSize:         10,
			MaxLen:            1000,
			EnableDLQ:         true,
		},
		Tenants:   repository.NewTenantRepository(db),
		Jobs:      repository.NewMessageJobRepository(db),
		Carts:     repository.NewCartRepository(db),
		Customers: repository.NewCustomerRepository(db),
		SMS:       helpers.NewStubProvider("sms"),
		WhatsApp:  helpers.NewStubProvider("whatsapp"),
	}
	env.Tenant = helpers.CreateTestTenant(t, db, 10, 10)

	evaluator, err := condition.NewEvaluator()
	require.NoError(t, err)

	flowRepo := repository.NewFlowRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	env.Dispatcher = engine.NewDispatcher(flowRepo, engine.NewStepExecutor(templateRepo, env.Jobs, evaluator))

	templateService := services.NewTemplateService(templateRepo)
	env.Flows = services.NewFlowService(flowRepo, templateRepo, evaluator, templateService)

	var publisher services.EventPublisher
	if queued {
		q, err := queue.NewQueue(adapter, env.QueueConfig)
		require.NoError(t, err)
		publisher = queue.NewEventPublisher(q)
	}
	env.Events = services.NewEventService(env.Carts, env.Customers, env.Dispatcher, publisher)

	opts := channel.Options{CountryCode: "20", WhatsAppToken: "token", WhatsAppNumber: "100200"}
	gate := channel.NewQuotaGate(env.Tenants)
	senders := map[model.Channel]channel.Sender{
		model.ChannelSMS:      channel.NewAdapter(model.ChannelSMS, env.Tenants, gate, env.SMS, opts),
		model.ChannelWhatsApp: channel.NewAdapter(model.ChannelWhatsApp, env.Tenants, gate, env.WhatsApp, opts),
	}
	env.Processor = processor.NewJobProcessor(env.Jobs, env.Customers, senders,
		processor.NewSendGuard(adapter, processor.DefaultGuardConfig()), processor.JobProcessorConfig{})

	env.Detector = cart.NewDetector(env.Carts, env.Customers, env.Dispatcher, cart.Config{Cutoff: time.Millisecond})
	return env
}

func (env *TestEnvironment) jobs(t *testing.T, status model.JobStatus) []*model.MessageJob {
	jobs, err := env.Jobs.List(context.Background(), model.JobFilter{TenantID: env.Tenant.ID, Status: status, Limit: 100})
	require.NoError(t, err)
	return jobs
}

func TestE2E_OrderConfirmationThroughStream(t *testing.T) {
	env := setupE2EEnvironment(t, true)
	ctx := context.Background()

	_, err := env.Flows.SeedDefaults(ctx, env.Tenant.ID)
	require.NoError(t, err)

	consumer := processor.NewEventConsumer(env.RedisAdapter, env.Dispatcher, processor.ConsumerConfig{
		Queue:   env.QueueConfig,
		Workers: 2,
	})
	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	res, err := env.Events.Ingest(ctx, fixtures.OrderCreatedEvent(env.Tenant.ID))
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.NotEmpty(t, res.MessageID)

	helpers.WaitFor(t, 5*time.Second, func() bool {
		return len(env.jobs(t, model.JobStatusPending)) == 2
	})

	require.NoError(t, env.Processor.Tick(ctx))

	assert.Len(t, env.jobs(t, model.JobStatusProcessed), 2)
	assert.Empty(t, env.jobs(t, model.JobStatusPending))

	sms := env.SMS.Sent()
	require.Len(t, sms, 1)
	assert.Equal(t, fixtures.TestPhoneE164, sms[0].To)
	assert.Contains(t, sms[0].Body, "#"+fixtures.TestOrderNo)
	assert.Contains(t, sms[0].Body, fixtures.TestCustomer)

	wa := env.WhatsApp.Sent()
	require.Len(t, wa, 1)
	assert.Equal(t, "token", wa[0].WhatsAppAccessToken)

	tenant, err := env.Tenants.Get(ctx, env.Tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tenant.SMSQuota.Used)
	assert.Equal(t, 1, tenant.WhatsAppQuota.Used)

	// a second tick finds nothing due and sends nothing
	require.NoError(t, env.Processor.Tick(ctx))
	assert.Len(t, env.SMS.Sent(), 1)
}

func TestE2E_InactiveFlowCreatesNoJobs(t *testing.T) {
	env := setupE2EEnvironment(t, false)
	ctx := context.Background()

	flow, err := env.Flows.SeedDefaults(ctx, env.Tenant.ID)
	require.NoError(t, err)
	require.NoError(t, env.Flows.SetActive(ctx, env.Tenant.ID, flow.ID, false))

	res, err := env.Events.Ingest(ctx, fixtures.OrderCreatedEvent(env.Tenant.ID))
	require.NoError(t, err)
	require.NotNil(t, res.Dispatch)
	assert.Zero(t, res.Dispatch.Executed)
	assert.Empty(t, env.jobs(t, ""))
}

func TestE2E_QuotaExhaustedMidBatch(t *testing.T) {
	env := setupE2EEnvironment(t, false)
	ctx := context.Background()

	_, err := env.Flows.SeedDefaults(ctx, env.Tenant.ID)
	require.NoError(t, err)
	require.NoError(t, env.Tenants.AllocateQuota(ctx, env.Tenant.ID, model.ChannelSMS, 1, nil))

	for i := 0; i < 2; i++ {
		_, err := env.Events.Ingest(ctx, fixtures.OrderCreatedEvent(env.Tenant.ID))
		require.NoError(t, err)
	}
	require.NoError(t, env.Processor.Tick(ctx))

	failed := env.jobs(t, model.JobStatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, model.ChannelSMS, failed[0].Channel)
	require.NotNil(t, failed[0].LastError)
	assert.Contains(t, *failed[0].LastError, "quota exceeded")
	assert.Len(t, env.SMS.Sent(), 1)
	assert.Len(t, env.WhatsApp.Sent(), 2)
}

func TestE2E_AbandonedCartRecovery(t *testing.T) {
	env := setupE2EEnvironment(t, false)
	ctx := context.Background()

	_, err := env.Flows.Create(ctx, fixtures.CartRecoveryFlow(env.Tenant.ID))
	require.NoError(t, err)
	customer := helpers.CreateTestCustomer(t, env.DB, env.Tenant.ID, fixtures.TestCustomer, fixtures.TestPhone)

	_, err = env.Events.Ingest(ctx, fixtures.CartCreatedEvent(env.Tenant.ID, customer.ID))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, env.Detector.Sweep(ctx))
	require.NoError(t, env.Processor.Tick(ctx))

	sms := env.SMS.Sent()
	require.Len(t, sms, 1)
	assert.Equal(t, "You left something in your cart", sms[0].Body)

	c, err := env.Carts.GetByToken(ctx, env.Tenant.ID, fixtures.TestCartToken)
	require.NoError(t, err)
	assert.True(t, c.RecoverySent)

	// the flag is permanent: later sweeps never fire again
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, env.Detector.Sweep(ctx))
	require.NoError(t, env.Processor.Tick(ctx))
	assert.Len(t, env.SMS.Sent(), 1)
}

func TestE2E_OrderConvertsCart(t *testing.T) {
	env := setupE2EEnvironment(t, false)
	ctx := context.Background()

	_, err := env.Flows.Create(ctx, fixtures.CartRecoveryFlow(env.Tenant.ID))
	require.NoError(t, err)
	customer := helpers.CreateTestCustomer(t, env.DB, env.Tenant.ID, fixtures.TestCustomer, fixtures.TestPhone)

	_, err = env.Events.Ingest(ctx, fixtures.CartCreatedEvent(env.Tenant.ID, customer.ID))
	require.NoError(t, err)

	res, err := env.Events.Ingest(ctx, fixtures.OrderCreatedEvent(env.Tenant.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.CartsConverted)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, env.Detector.Sweep(ctx))
	require.NoError(t, env.Processor.Tick(ctx))
	assert.Empty(t, env.SMS.Sent())
}
