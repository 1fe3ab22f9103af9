package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/logger"
)

type QuotaRepository interface {
	channel.TenantStore
	AllocateQuota(ctx context.Context, id string, ch model.Channel, allocated int, resetDate *time.Time) error
	ResetQuota(ctx context.Context, id string, ch model.Channel) error
}

type QuotaService struct {
	tenants QuotaRepository
	gate    *channel.QuotaGate
}

func NewQuotaService(tenants QuotaRepository) *QuotaService {
	return &QuotaService{
		tenants: tenants,
		gate:    channel.NewQuotaGate(tenants),
	}
}

func (s *QuotaService) Get(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
	}
	return s.gate.Status(ctx, tenantID, ch)
}

// Allocate sets the channel allowance. Usage is left as it is.
func (s *QuotaService) Allocate(ctx context.Context, tenantID string, ch model.Channel, allocated int, resetDate *time.Time) (*model.QuotaStatus, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
	}
	if allocated < 0 {
		return nil, fmt.Errorf("%w: allocated must not be negative", ErrInvalidInput)
	}
	if err := s.tenants.AllocateQuota(ctx, tenantID, ch, allocated, resetDate); err != nil {
		return nil, err
	}
	logger.Info("quota allocated", "tenant_id", tenantID, "channel", ch, "allocated", allocated)
	return s.gate.Status(ctx, tenantID, ch)
}

func (s *QuotaService) Reset(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
	}
	if err := s.tenants.ResetQuota(ctx, tenantID, ch); err != nil {
		return nil, err
	}
	logger.Info("quota usage reset", "tenant_id", tenantID, "channel", ch)
	return s.gate.Status(ctx, tenantID, ch)
}
