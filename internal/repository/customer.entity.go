package repository

import (
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
)

type CustomerEntity struct {
	pg.Model
	TenantID string `gorm:"column:tenant_id;not null;index"`
	Name     string `gorm:"column:name"`
	Email    string `gorm:"column:email;index"`
	Phone    string `gorm:"column:phone;index"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		Model:    pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		TenantID: m.TenantID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:        e.ID,
		TenantID:  e.TenantID,
		Name:      e.Name,
		Email:     e.Email,
		Phone:     e.Phone,
		CreatedAt: e.CreatedAt,
	}
}
