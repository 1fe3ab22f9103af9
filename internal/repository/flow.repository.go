package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
)

type FlowRepository struct {
	*pg.DB
}

func NewFlowRepository(db *pg.DB) *FlowRepository {
	return &FlowRepository{db}
}

func orderedSteps(db *gorm.DB) *gorm.DB {
	return db.Order("step_order asc")
}

// Create stores the flow and its steps.
func (r *FlowRepository) Create(ctx context.Context, f *model.Flow) (*model.Flow, error) {
	e := toFlowEntity(f)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toFlowModel(e), nil
}

func (r *FlowRepository) Get(ctx context.Context, tenantID, id string) (*model.Flow, error) {
	var e FlowEntity
	err := r.Read(ctx).
		Preload("Steps", orderedSteps).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	return toFlowModel(&e), nil
}

func (r *FlowRepository) ListByTenant(ctx context.Context, tenantID string) ([]*model.Flow, error) {
	var entities []*FlowEntity
	err := r.Read(ctx).
		Preload("Steps", orderedSteps).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toFlowModels(entities), nil
}

// FindActiveByTrigger returns the tenant's active flows bound to trigger,
// each with its steps in ascending order.
func (r *FlowRepository) FindActiveByTrigger(ctx context.Context, tenantID string, trigger model.Trigger) ([]*model.Flow, error) {
	var entities []*FlowEntity
	err := r.Read(ctx).
		Preload("Steps", orderedSteps).
		Where("tenant_id = ? AND trigger_type = ? AND is_active = ?", tenantID, string(trigger), true).
		Order("created_at asc").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toFlowModels(entities), nil
}

func (r *FlowRepository) ExistsByName(ctx context.Context, tenantID, name string) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&FlowEntity{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Count(&count).Error
	return count > 0, err
}

// Update rewrites the flow's attributes and replaces all of its steps.
func (r *FlowRepository) Update(ctx context.Context, f *model.Flow) (*model.Flow, error) {
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		result := r.Write(ctx).
			Model(&FlowEntity{}).
			Where("tenant_id = ? AND id = ?", f.TenantID, f.ID).
			Updates(map[string]any{
				"name":         f.Name,
				"description":  f.Description,
				"trigger_type": string(f.Trigger),
				"is_active":    f.IsActive,
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrFlowNotFound
		}

		if err := r.Write(ctx).Where("flow_id = ?", f.ID).Delete(&StepEntity{}).Error; err != nil {
			return err
		}
		steps := toStepEntities(f.ID, f.Steps)
		if len(steps) == 0 {
			return nil
		}
		return r.Write(ctx).Create(&steps).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, f.TenantID, f.ID)
}

func (r *FlowRepository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	result := r.Write(ctx).
		Model(&FlowEntity{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

// Delete removes the flow and its steps.
func (r *FlowRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		result := r.Write(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&FlowEntity{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrFlowNotFound
		}
		return r.Write(ctx).Where("flow_id = ?", id).Delete(&StepEntity{}).Error
	})
}

// RecordExecution bumps the trigger counter and stamps lastTriggeredAt in
// one statement.
func (r *FlowRepository) RecordExecution(ctx context.Context, id string, at time.Time) error {
	result := r.Write(ctx).
		Model(&FlowEntity{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"trigger_count":     gorm.Expr("trigger_count + 1"),
			"last_triggered_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFlowNotFound
	}
	return nil
}
