package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
)

type TenantRepository struct {
	*pg.DB
}

func NewTenantRepository(db *pg.DB) *TenantRepository {
	return &TenantRepository{db}
}

func (r *TenantRepository) Create(ctx context.Context, t *model.Tenant) (*model.Tenant, error) {
	e := toTenantEntity(t)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toTenantModel(e), nil
}

func (r *TenantRepository) Get(ctx context.Context, id string) (*model.Tenant, error) {
	var e TenantEntity
	err := r.Read(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return toTenantModel(&e), nil
}

// ReserveQuota takes one unit of the channel quota in a single conditional
// UPDATE, so concurrent senders can never push used past allocated.
func (r *TenantRepository) ReserveQuota(ctx context.Context, id string, ch model.Channel) error {
	used, allocated, _ := quotaColumns(ch)
	result := r.Write(ctx).
		Model(&TenantEntity{}).
		Where("id = ? AND "+used+" < "+allocated, id).
		UpdateColumn(used, gorm.Expr(used+" + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrQuotaExceeded
	}
	return nil
}

// ReleaseQuota gives back a unit taken by ReserveQuota. used never drops
// below zero.
func (r *TenantRepository) ReleaseQuota(ctx context.Context, id string, ch model.Channel) error {
	used, _, _ := quotaColumns(ch)
	return r.Write(ctx).
		Model(&TenantEntity{}).
		Where("id = ? AND "+used+" > 0", id).
		UpdateColumn(used, gorm.Expr(used+" - 1")).
		Error
}

func (r *TenantRepository) AllocateQuota(ctx context.Context, id string, ch model.Channel, allocated int, resetDate *time.Time) error {
	_, allocatedCol, resetCol := quotaColumns(ch)
	result := r.Write(ctx).
		Model(&TenantEntity{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{allocatedCol: allocated, resetCol: resetDate})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepository) ResetQuota(ctx context.Context, id string, ch model.Channel) error {
	used, _, _ := quotaColumns(ch)
	result := r.Write(ctx).
		Model(&TenantEntity{}).
		Where("id = ?", id).
		UpdateColumn(used, 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
