package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusProcessed JobStatus = "processed"
	JobStatusFailed    JobStatus = "failed"
)

// MessageJob is one scheduled send. Content is rendered when the job is
// created; Recipient is the phone captured from the trigger data, used when
// the customer record has none.
type MessageJob struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenantId"`
	CustomerID        string     `json:"customerId"`
	FlowID            string     `json:"flowId,omitempty"`
	StepOrder         int        `json:"stepOrder,omitempty"`
	Channel           Channel    `json:"channel"`
	Content           string     `json:"content"`
	Recipient         string     `json:"recipient,omitempty"`
	ScheduledAt       time.Time  `json:"scheduledAt"`
	Status            JobStatus  `json:"status"`
	Attempts          int        `json:"attempts"`
	LastError         *string    `json:"lastError,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type JobFilter struct {
	TenantID string
	Status   JobStatus
	Limit    int
}
