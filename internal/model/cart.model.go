package model

import "time"

type Cart struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	CartToken    string     `json:"cartToken"`
	CustomerID   *string    `json:"customerId,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	TotalAmount  string     `json:"totalAmount"`
	Currency     string     `json:"currency"`
	Converted    bool       `json:"converted"`
	RecoverySent bool       `json:"recoverySent"`
	RecoveryAt   *time.Time `json:"recoveryAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
