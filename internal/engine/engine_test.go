package engine

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/message-automation/internal/condition"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db         *pg.DB
	flows      *repository.FlowRepository
	templates  *repository.TemplateRepository
	jobs       *repository.MessageJobRepository
	dispatcher *Dispatcher
}

func setup(t *testing.T) *fixture {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(repository.AllEntities()...))

	db := pg.NewDB(gdb, gdb)
	f := &fixture{
		db:        db,
		flows:     repository.NewFlowRepository(db),
		templates: repository.NewTemplateRepository(db),
		jobs:      repository.NewMessageJobRepository(db),
	}

	evaluator, err := condition.NewEvaluator()
	require.NoError(t, err)
	executor := NewStepExecutor(f.templates, f.jobs, evaluator)
	executor.now = func() time.Time { return fixedNow }
	f.dispatcher = NewDispatcher(f.flows, executor)
	f.dispatcher.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) createFlow(t *testing.T, tenantID string, trigger model.Trigger, active bool, steps ...model.Step) *model.Flow {
	t.Helper()
	flow, err := f.flows.Create(context.Background(), &model.Flow{
		TenantID: tenantID,
		Name:     "flow",
		Trigger:  trigger,
		IsActive: active,
		Steps:    model.NormalizeStepOrder(steps),
	})
	require.NoError(t, err)
	return flow
}

func (f *fixture) allJobs(t *testing.T, tenantID string) []*model.MessageJob {
	t.Helper()
	jobs, err := f.jobs.List(context.Background(), model.JobFilter{TenantID: tenantID, Limit: 100})
	require.NoError(t, err)
	return jobs
}

func send(action model.ActionType, delay int, templateID, message string) model.Step {
	return model.Step{ActionType: action, Send: &model.SendAction{DelayMinutes: delay, TemplateID: templateID, Message: message}}
}

func TestDispatch_OrderConfirmation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, &model.Template{
		TenantID: "t1",
		Name:     "T1",
		Channel:  model.ChannelSMS,
		Content:  "Hi {{customer_name}}, order {{order_number}} confirmed",
		IsActive: true,
	})
	require.NoError(t, err)
	flow := f.createFlow(t, "t1", model.TriggerOrderCreated, true, send(model.ActionSendSMS, 0, tpl.ID, ""))

	res, err := f.dispatcher.Dispatch(ctx, model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1", "customer_name": "Sara", "order_number": "1007"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DispatchResult{Matched: 1, Executed: 1, JobsCreated: 1}, res)

	jobs := f.allJobs(t, "t1")
	require.Len(t, jobs, 1)
	assert.Equal(t, "Hi Sara, order 1007 confirmed", jobs[0].Content)
	assert.Equal(t, model.JobStatusPending, jobs[0].Status)
	assert.Equal(t, "c1", jobs[0].CustomerID)
	assert.True(t, fixedNow.Equal(jobs[0].ScheduledAt))

	got, err := f.flows.Get(ctx, "t1", flow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)
}

func TestDispatch_InactiveFlowCreatesNothing(t *testing.T) {
	f := setup(t)
	f.createFlow(t, "t1", model.TriggerOrderCreated, false, send(model.ActionSendSMS, 0, "", "hello"))

	res, err := f.dispatcher.Dispatch(context.Background(), model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1"},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
	assert.Empty(t, f.allJobs(t, "t1"))
}

func TestDispatch_InvalidTrigger(t *testing.T) {
	f := setup(t)
	_, err := f.dispatcher.Dispatch(context.Background(), model.TriggerEvent{Type: "order_shipped", TenantID: "t1"})
	assert.ErrorIs(t, err, model.ErrInvalidTrigger)
}

func TestExecute_StepsAndSkips(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.createFlow(t, "t1", model.TriggerCartAbandoned, true,
		send(model.ActionSendSMS, 0, "", "first {{unknown}}"),
		model.Step{ActionType: model.ActionWait, Wait: &model.WaitAction{DelayMinutes: 30}},
		send(model.ActionSendWhatsApp, 120, "missing-template", ""),
		model.Step{ActionType: model.ActionCondition, Condition: &model.ConditionAction{Expression: `data.currency == "USD"`}},
		model.Step{ActionType: "send_email"},
		send(model.ActionSendWhatsApp, 60, "", "last"),
		send(model.ActionSendSMS, 0, "", ""),
	)

	res, err := f.dispatcher.Dispatch(ctx, model.TriggerEvent{
		Type:     model.TriggerCartAbandoned,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1", "customerPhone": "+201001234567", "currency": "USD"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 2, res.JobsCreated)

	jobs, err := f.jobs.FindDue(ctx, fixedNow.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "first {{unknown}}", jobs[0].Content)
	assert.Equal(t, model.ChannelSMS, jobs[0].Channel)
	assert.Equal(t, "+201001234567", jobs[0].Recipient)
	assert.Equal(t, "last", jobs[1].Content)
	assert.Equal(t, model.ChannelWhatsApp, jobs[1].Channel)
	assert.True(t, fixedNow.Add(time.Hour).Equal(jobs[1].ScheduledAt))
	assert.Equal(t, 6, jobs[1].StepOrder)
}

func TestExecute_NoCustomerSkipsSends(t *testing.T) {
	f := setup(t)
	flow := f.createFlow(t, "t1", model.TriggerOrderCreated, true, send(model.ActionSendSMS, 0, "", "hello"))

	res, err := f.dispatcher.Dispatch(context.Background(), model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: "t1",
		Data:     map[string]string{"customer_name": "Sara"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Zero(t, res.JobsCreated)
	assert.Empty(t, f.allJobs(t, "t1"))

	got, err := f.flows.Get(context.Background(), "t1", flow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TriggerCount)
}

func TestExecute_TemplateFromOtherTenant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, &model.Template{TenantID: "t2", Name: "x", Channel: model.ChannelSMS, Content: "secret", IsActive: true})
	require.NoError(t, err)
	f.createFlow(t, "t1", model.TriggerOrderCreated, true, send(model.ActionSendSMS, 0, tpl.ID, ""))

	res, err := f.dispatcher.Dispatch(ctx, model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1"},
	})
	require.NoError(t, err)
	assert.Zero(t, res.JobsCreated)
}

func TestExecute_RenderedContentHasNoPlaceholders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, &model.Template{
		TenantID: "t1",
		Name:     "partial",
		Channel:  model.ChannelWhatsApp,
		Content:  "Hi {{customer_name}}, total {{ total_amount }} {{currency}}{{missing}}",
		IsActive: true,
	})
	require.NoError(t, err)
	f.createFlow(t, "t1", model.TriggerOrderCreated, true, send(model.ActionSendWhatsApp, 0, tpl.ID, ""))

	_, err = f.dispatcher.Dispatch(ctx, model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1", "customer_name": "Sara", "total_amount": "20.00"},
	})
	require.NoError(t, err)

	jobs := f.allJobs(t, "t1")
	require.Len(t, jobs, 1)
	assert.Equal(t, "Hi Sara, total 20.00 ", jobs[0].Content)
}

type panicStore struct{}

func (panicStore) Get(context.Context, string) (*model.Template, error) { panic("boom") }

func TestDispatch_FlowIsolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	executor := NewStepExecutor(panicStore{}, f.jobs, nil)
	executor.now = func() time.Time { return fixedNow }
	dispatcher := NewDispatcher(f.flows, executor)

	f.createFlow(t, "t1", model.TriggerOrderFulfilled, true,
		send(model.ActionSendSMS, 0, "tpl", ""),
		send(model.ActionSendSMS, 0, "", "after panic"),
	)
	f.createFlow(t, "t1", model.TriggerOrderFulfilled, true, send(model.ActionSendSMS, 0, "", "second flow"))

	res, err := dispatcher.Dispatch(ctx, model.TriggerEvent{
		Type:     model.TriggerOrderFulfilled,
		TenantID: "t1",
		Data:     map[string]string{"customerId": "c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, 2, res.JobsCreated)
}
