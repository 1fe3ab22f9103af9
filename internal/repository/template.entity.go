package repository

import (
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/datatypes"
)

type TemplateEntity struct {
	pg.Model
	TenantID  string                      `gorm:"column:tenant_id;not null;index"`
	Name      string                      `gorm:"column:name;not null"`
	Channel   string                      `gorm:"column:channel;not null"`
	Content   string                      `gorm:"column:content;not null"`
	Variables datatypes.JSONSlice[string] `gorm:"column:variables"`
	IsActive  bool                        `gorm:"column:is_active;not null"`
}

func (TemplateEntity) TableName() string {
	return "message_templates"
}

func toTemplateEntity(m *model.Template) *TemplateEntity {
	if m == nil {
		return nil
	}
	return &TemplateEntity{
		Model:     pg.Model{ID: m.ID},
		TenantID:  m.TenantID,
		Name:      m.Name,
		Channel:   string(m.Channel),
		Content:   m.Content,
		Variables: datatypes.NewJSONSlice(m.Variables),
		IsActive:  m.IsActive,
	}
}

func toTemplateModel(e *TemplateEntity) *model.Template {
	if e == nil {
		return nil
	}
	return &model.Template{
		ID:        e.ID,
		TenantID:  e.TenantID,
		Name:      e.Name,
		Channel:   model.Channel(e.Channel),
		Content:   e.Content,
		Variables: []string(e.Variables),
		IsActive:  e.IsActive,
		CreatedAt: e.CreatedAt,
	}
}

func toTemplateModels(entities []*TemplateEntity) []*model.Template {
	models := make([]*model.Template, len(entities))
	for i, e := range entities {
		models[i] = toTemplateModel(e)
	}
	return models
}
