package repository

import (
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
)

type TenantEntity struct {
	pg.Model
	Name                  string     `gorm:"column:name;not null"`
	Status                string     `gorm:"column:status;not null"`
	WhatsAppEnabled       bool       `gorm:"column:whatsapp_enabled;not null"`
	SMSSenderID           string     `gorm:"column:sms_sender_id"`
	WhatsAppAccessToken   string     `gorm:"column:whatsapp_access_token"`
	WhatsAppPhoneNumberID string     `gorm:"column:whatsapp_phone_number_id"`
	SMSAllocated          int        `gorm:"column:sms_allocated;not null"`
	SMSUsed               int        `gorm:"column:sms_used;not null"`
	SMSResetDate          *time.Time `gorm:"column:sms_reset_date"`
	WhatsAppAllocated     int        `gorm:"column:whatsapp_allocated;not null"`
	WhatsAppUsed          int        `gorm:"column:whatsapp_used;not null"`
	WhatsAppResetDate     *time.Time `gorm:"column:whatsapp_reset_date"`
}

func (TenantEntity) TableName() string {
	return "tenants"
}

func toTenantEntity(m *model.Tenant) *TenantEntity {
	if m == nil {
		return nil
	}
	return &TenantEntity{
		Model:                 pg.Model{ID: m.ID},
		Name:                  m.Name,
		Status:                string(m.Status),
		WhatsAppEnabled:       m.WhatsAppEnabled,
		SMSSenderID:           m.SMSSenderID,
		WhatsAppAccessToken:   m.WhatsAppAccessToken,
		WhatsAppPhoneNumberID: m.WhatsAppPhoneNumberID,
		SMSAllocated:          m.SMSQuota.Allocated,
		SMSUsed:               m.SMSQuota.Used,
		SMSResetDate:          m.SMSQuota.ResetDate,
		WhatsAppAllocated:     m.WhatsAppQuota.Allocated,
		WhatsAppUsed:          m.WhatsAppQuota.Used,
		WhatsAppResetDate:     m.WhatsAppQuota.ResetDate,
	}
}

func toTenantModel(e *TenantEntity) *model.Tenant {
	if e == nil {
		return nil
	}
	return &model.Tenant{
		ID:                    e.ID,
		Name:                  e.Name,
		Status:                model.TenantStatus(e.Status),
		WhatsAppEnabled:       e.WhatsAppEnabled,
		SMSSenderID:           e.SMSSenderID,
		WhatsAppAccessToken:   e.WhatsAppAccessToken,
		WhatsAppPhoneNumberID: e.WhatsAppPhoneNumberID,
		SMSQuota: model.Quota{
			Allocated: e.SMSAllocated,
			Used:      e.SMSUsed,
			ResetDate: e.SMSResetDate,
		},
		WhatsAppQuota: model.Quota{
			Allocated: e.WhatsAppAllocated,
			Used:      e.WhatsAppUsed,
			ResetDate: e.WhatsAppResetDate,
		},
	}
}

// quotaColumns maps a channel to its used, allocated and reset columns.
func quotaColumns(ch model.Channel) (used, allocated, reset string) {
	if ch == model.ChannelWhatsApp {
		return "whatsapp_used", "whatsapp_allocated", "whatsapp_reset_date"
	}
	return "sms_used", "sms_allocated", "sms_reset_date"
}
