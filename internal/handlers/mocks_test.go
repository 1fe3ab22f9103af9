package handlers

import (
	"context"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/services"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func withParams(ctx *xhttp.RequestCtx, kv ...string) *xhttp.RequestCtx {
	for i := 0; i+1 < len(kv); i += 2 {
		ctx.SetUserValue(kv[i], kv[i+1])
	}
	return ctx
}

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) Ingest(ctx context.Context, ev model.TriggerEvent) (*services.IngestResult, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.IngestResult), args.Error(1)
}

type MockFlowService struct {
	mock.Mock
}

func (m *MockFlowService) Create(ctx context.Context, in model.FlowInput) (*model.Flow, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flow), args.Error(1)
}

func (m *MockFlowService) Update(ctx context.Context, id string, in model.FlowInput) (*model.Flow, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flow), args.Error(1)
}

func (m *MockFlowService) Get(ctx context.Context, tenantID, id string) (*model.Flow, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flow), args.Error(1)
}

func (m *MockFlowService) List(ctx context.Context, tenantID string) ([]*model.Flow, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Flow), args.Error(1)
}

func (m *MockFlowService) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	return m.Called(ctx, tenantID, id, active).Error(0)
}

func (m *MockFlowService) Delete(ctx context.Context, tenantID, id string) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockFlowService) SeedDefaults(ctx context.Context, tenantID string) (*model.Flow, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flow), args.Error(1)
}

type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) Create(ctx context.Context, in model.TemplateInput) (*model.Template, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) Get(ctx context.Context, tenantID, id string) (*model.Template, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) List(ctx context.Context, tenantID string, ch *model.Channel) ([]*model.Template, error) {
	args := m.Called(ctx, tenantID, ch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Template), args.Error(1)
}

func (m *MockTemplateService) Seed(ctx context.Context, tenantID string) ([]*model.Template, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Template), args.Error(1)
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MessageJob), args.Error(1)
}

type MockQuotaService struct {
	mock.Mock
}

func (m *MockQuotaService) Get(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error) {
	args := m.Called(ctx, tenantID, ch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaStatus), args.Error(1)
}

func (m *MockQuotaService) Allocate(ctx context.Context, tenantID string, ch model.Channel, allocated int, resetDate *time.Time) (*model.QuotaStatus, error) {
	args := m.Called(ctx, tenantID, ch, allocated, resetDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaStatus), args.Error(1)
}

func (m *MockQuotaService) Reset(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error) {
	args := m.Called(ctx, tenantID, ch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaStatus), args.Error(1)
}
