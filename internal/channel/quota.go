package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
)

type TenantStore interface {
	Get(ctx context.Context, id string) (*model.Tenant, error)
	ReserveQuota(ctx context.Context, id string, ch model.Channel) error
	ReleaseQuota(ctx context.Context, id string, ch model.Channel) error
}

// QuotaGate enforces the per-tenant, per-channel send budget. A reservation
// is an atomic increment with a ceiling, so used never exceeds allocated.
type QuotaGate struct {
	tenants TenantStore
}

func NewQuotaGate(tenants TenantStore) *QuotaGate {
	return &QuotaGate{tenants: tenants}
}

// CheckAndReserve takes one unit of quota or fails with ErrQuotaExceeded.
func (g *QuotaGate) CheckAndReserve(ctx context.Context, tenantID string, ch model.Channel) error {
	err := g.tenants.ReserveQuota(ctx, tenantID, ch)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrQuotaExceeded) {
		return err
	}

	prom.QuotaDenied(string(ch))
	tenant, getErr := g.tenants.Get(ctx, tenantID)
	if getErr != nil {
		return fmt.Errorf("%s %w", channelLabel(ch), ErrQuotaExceeded)
	}
	q := tenant.Quota(ch)
	return fmt.Errorf("%s %w. Used: %d/%d", channelLabel(ch), ErrQuotaExceeded, q.Used, q.Allocated)
}

// Release returns a reserved unit after a failed send.
func (g *QuotaGate) Release(ctx context.Context, tenantID string, ch model.Channel) {
	if err := g.tenants.ReleaseQuota(ctx, tenantID, ch); err != nil {
		logger.Error("failed to release quota", "tenant_id", tenantID, "channel", ch, "error", err)
	}
}

func (g *QuotaGate) Status(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error) {
	tenant, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	q := tenant.Quota(ch)
	return &model.QuotaStatus{
		TenantID:  tenantID,
		Channel:   ch,
		Allocated: q.Allocated,
		Used:      q.Used,
		Remaining: q.Remaining(),
		ResetDate: q.ResetDate,
	}, nil
}

func channelLabel(ch model.Channel) string {
	if ch == model.ChannelWhatsApp {
		return "WhatsApp"
	}
	return "SMS"
}
