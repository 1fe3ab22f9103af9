package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
)

type TemplateRepository struct {
	*pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{db}
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	e := toTemplateEntity(t)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toTemplateModel(e), nil
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*model.Template, error) {
	var e TemplateEntity
	err := r.Read(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toTemplateModel(&e), nil
}

// ListByTenant returns active templates, newest first, optionally narrowed
// to one channel.
func (r *TemplateRepository) ListByTenant(ctx context.Context, tenantID string, ch *model.Channel) ([]*model.Template, error) {
	q := r.Read(ctx).Where("tenant_id = ? AND is_active = ?", tenantID, true)
	if ch != nil {
		q = q.Where("channel = ?", string(*ch))
	}
	var entities []*TemplateEntity
	if err := q.Order("created_at desc").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTemplateModels(entities), nil
}

func (r *TemplateRepository) FindByName(ctx context.Context, tenantID, name string) (*model.Template, error) {
	var e TemplateEntity
	err := r.Read(ctx).Where("tenant_id = ? AND name = ?", tenantID, name).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toTemplateModel(&e), nil
}
