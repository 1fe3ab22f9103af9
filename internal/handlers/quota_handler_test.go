package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestQuotaHandler_AllocateQuota(t *testing.T) {
	t.Run("allocates with reset date", func(t *testing.T) {
		svc := new(MockQuotaService)
		h := NewQuotaHandler(svc)

		reset := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		svc.On("Allocate", mock.Anything, "t-1", model.ChannelSMS, 500, mock.MatchedBy(func(d *time.Time) bool {
			return d != nil && d.Equal(reset)
		})).Return(&model.QuotaStatus{TenantID: "t-1", Channel: model.ChannelSMS, Allocated: 500, Remaining: 500}, nil)

		body := []byte(`{"allocated":500,"resetDate":"2026-11-01T00:00:00Z"}`)
		ctx := withParams(setupTestContext("PUT", "/tenants/t-1/quota/sms", body), "tenantId", "t-1", "channel", "sms")
		h.AllocateQuota(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), `"remaining":500`)
		svc.AssertExpectations(t)
	})

	t.Run("allocated is required", func(t *testing.T) {
		svc := new(MockQuotaService)
		h := NewQuotaHandler(svc)

		ctx := withParams(setupTestContext("PUT", "/tenants/t-1/quota/sms", []byte(`{}`)), "tenantId", "t-1", "channel", "sms")
		h.AllocateQuota(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("service rejects negative", func(t *testing.T) {
		svc := new(MockQuotaService)
		h := NewQuotaHandler(svc)

		svc.On("Allocate", mock.Anything, "t-1", model.ChannelSMS, -1, (*time.Time)(nil)).
			Return(nil, errors.Join(services.ErrInvalidInput, errors.New("allocated must not be negative")))

		ctx := withParams(setupTestContext("PUT", "/tenants/t-1/quota/sms", []byte(`{"allocated":-1}`)), "tenantId", "t-1", "channel", "sms")
		h.AllocateQuota(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestQuotaHandler_ResetQuota(t *testing.T) {
	svc := new(MockQuotaService)
	h := NewQuotaHandler(svc)

	svc.On("Reset", mock.Anything, "t-1", model.ChannelWhatsApp).
		Return(&model.QuotaStatus{Channel: model.ChannelWhatsApp, Allocated: 100, Used: 0, Remaining: 100}, nil)

	ctx := withParams(setupTestContext("POST", "/tenants/t-1/quota/whatsapp/reset", nil), "tenantId", "t-1", "channel", "whatsapp")
	h.ResetQuota(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"used":0`)
}
