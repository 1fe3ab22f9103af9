package repository

import (
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
)

type MessageJobEntity struct {
	pg.Model
	TenantID          string     `gorm:"column:tenant_id;not null;index"`
	CustomerID        string     `gorm:"column:customer_id;not null"`
	FlowID            string     `gorm:"column:flow_id;index"`
	StepOrder         int        `gorm:"column:step_order"`
	Channel           string     `gorm:"column:channel;not null"`
	Content           string     `gorm:"column:content;not null"`
	Recipient         string     `gorm:"column:recipient"`
	ScheduledAt       time.Time  `gorm:"column:scheduled_at;not null;index:idx_job_due"`
	Status            string     `gorm:"column:status;not null;index:idx_job_due"`
	Attempts          int        `gorm:"column:attempts;not null"`
	LastError         *string    `gorm:"column:last_error"`
	SentAt            *time.Time `gorm:"column:sent_at"`
	ProviderMessageID string     `gorm:"column:provider_message_id"`
}

func (MessageJobEntity) TableName() string {
	return "message_jobs"
}

func toMessageJobEntity(m *model.MessageJob) *MessageJobEntity {
	if m == nil {
		return nil
	}
	return &MessageJobEntity{
		Model:             pg.Model{ID: m.ID},
		TenantID:          m.TenantID,
		CustomerID:        m.CustomerID,
		FlowID:            m.FlowID,
		StepOrder:         m.StepOrder,
		Channel:           string(m.Channel),
		Content:           m.Content,
		Recipient:         m.Recipient,
		ScheduledAt:       m.ScheduledAt,
		Status:            string(m.Status),
		Attempts:          m.Attempts,
		LastError:         m.LastError,
		SentAt:            m.SentAt,
		ProviderMessageID: m.ProviderMessageID,
	}
}

func toMessageJobModel(e *MessageJobEntity) *model.MessageJob {
	if e == nil {
		return nil
	}
	return &model.MessageJob{
		ID:                e.ID,
		TenantID:          e.TenantID,
		CustomerID:        e.CustomerID,
		FlowID:            e.FlowID,
		StepOrder:         e.StepOrder,
		Channel:           model.Channel(e.Channel),
		Content:           e.Content,
		Recipient:         e.Recipient,
		ScheduledAt:       e.ScheduledAt,
		Status:            model.JobStatus(e.Status),
		Attempts:          e.Attempts,
		LastError:         e.LastError,
		SentAt:            e.SentAt,
		ProviderMessageID: e.ProviderMessageID,
		CreatedAt:         e.CreatedAt,
	}
}

func toMessageJobModels(entities []*MessageJobEntity) []*model.MessageJob {
	models := make([]*model.MessageJob, len(entities))
	for i, e := range entities {
		models[i] = toMessageJobModel(e)
	}
	return models
}
