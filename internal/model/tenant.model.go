package model

import "time"

type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantInactive  TenantStatus = "inactive"
	TenantSuspended TenantStatus = "suspended"
)

type Quota struct {
	Allocated int        `json:"allocated"`
	Used      int        `json:"used"`
	ResetDate *time.Time `json:"resetDate,omitempty"`
}

func (q Quota) Remaining() int {
	if q.Used >= q.Allocated {
		return 0
	}
	return q.Allocated - q.Used
}

type QuotaStatus struct {
	TenantID  string     `json:"tenantId"`
	Channel   Channel    `json:"channel"`
	Allocated int        `json:"allocated"`
	Used      int        `json:"used"`
	Remaining int        `json:"remaining"`
	ResetDate *time.Time `json:"resetDate,omitempty"`
}

// Tenant is a merchant store. Channel credentials are optional; empty
// values fall back to the process-wide defaults.
type Tenant struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	Status                TenantStatus `json:"status"`
	WhatsAppEnabled       bool         `json:"whatsappEnabled"`
	SMSSenderID           string       `json:"smsSenderId,omitempty"`
	WhatsAppAccessToken   string       `json:"-"`
	WhatsAppPhoneNumberID string       `json:"whatsappPhoneNumberId,omitempty"`
	SMSQuota              Quota        `json:"smsQuota"`
	WhatsAppQuota         Quota        `json:"whatsappQuota"`
}

func (t *Tenant) Quota(ch Channel) Quota {
	if ch == ChannelWhatsApp {
		return t.WhatsAppQuota
	}
	return t.SMSQuota
}
