package repository

import (
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/datatypes"
)

type FlowEntity struct {
	pg.Model
	TenantID        string       `gorm:"column:tenant_id;not null;index:idx_flow_lookup"`
	Name            string       `gorm:"column:name;not null"`
	Description     string       `gorm:"column:description"`
	Trigger         string       `gorm:"column:trigger_type;not null;index:idx_flow_lookup"`
	IsActive        bool         `gorm:"column:is_active;not null;index:idx_flow_lookup"`
	TriggerCount    int64        `gorm:"column:trigger_count;not null"`
	LastTriggeredAt *time.Time   `gorm:"column:last_triggered_at"`
	Steps           []StepEntity `gorm:"foreignKey:FlowID;constraint:OnDelete:CASCADE"`
}

func (FlowEntity) TableName() string {
	return "flows"
}

type StepEntity struct {
	pg.Model
	FlowID     string                               `gorm:"column:flow_id;not null;uniqueIndex:idx_step_flow_order"`
	StepOrder  int                                  `gorm:"column:step_order;not null;uniqueIndex:idx_step_flow_order"`
	ActionType string                               `gorm:"column:action_type;not null"`
	Config     datatypes.JSONType[model.StepConfig] `gorm:"column:config"`
}

func (StepEntity) TableName() string {
	return "flow_steps"
}

func toFlowEntity(m *model.Flow) *FlowEntity {
	if m == nil {
		return nil
	}
	return &FlowEntity{
		Model:           pg.Model{ID: m.ID},
		TenantID:        m.TenantID,
		Name:            m.Name,
		Description:     m.Description,
		Trigger:         string(m.Trigger),
		IsActive:        m.IsActive,
		TriggerCount:    m.TriggerCount,
		LastTriggeredAt: m.LastTriggeredAt,
		Steps:           toStepEntities(m.ID, m.Steps),
	}
}

func toStepEntities(flowID string, steps []model.Step) []StepEntity {
	out := make([]StepEntity, len(steps))
	for i, s := range steps {
		out[i] = StepEntity{
			FlowID:     flowID,
			StepOrder:  s.StepOrder,
			ActionType: string(s.ActionType),
			Config:     datatypes.NewJSONType(s.Config()),
		}
	}
	return out
}

func toFlowModel(e *FlowEntity) *model.Flow {
	if e == nil {
		return nil
	}
	steps := make([]model.Step, len(e.Steps))
	for i, s := range e.Steps {
		steps[i] = model.StepFromConfig(s.ID, s.StepOrder, model.ActionType(s.ActionType), s.Config.Data())
	}
	return &model.Flow{
		ID:              e.ID,
		TenantID:        e.TenantID,
		Name:            e.Name,
		Description:     e.Description,
		Trigger:         model.Trigger(e.Trigger),
		IsActive:        e.IsActive,
		TriggerCount:    e.TriggerCount,
		LastTriggeredAt: e.LastTriggeredAt,
		Steps:           steps,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toFlowModels(entities []*FlowEntity) []*model.Flow {
	models := make([]*model.Flow, len(entities))
	for i, e := range entities {
		models[i] = toFlowModel(e)
	}
	return models
}
