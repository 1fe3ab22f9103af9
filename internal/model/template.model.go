package model

import "time"

type Template struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type TemplateInput struct {
	TenantID  string   `json:"tenantId"`
	Name      string   `json:"name"`
	Channel   Channel  `json:"channel"`
	Content   string   `json:"content"`
	Variables []string `json:"variables"`
}
