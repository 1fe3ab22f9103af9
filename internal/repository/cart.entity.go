package repository

import (
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
)

type CartEntity struct {
	pg.Model
	TenantID     string     `gorm:"column:tenant_id;not null;uniqueIndex:idx_cart_tenant_token"`
	CartToken    string     `gorm:"column:cart_token;not null;uniqueIndex:idx_cart_tenant_token"`
	CustomerID   *string    `gorm:"column:customer_id"`
	Email        *string    `gorm:"column:email"`
	Phone        *string    `gorm:"column:phone"`
	TotalAmount  string     `gorm:"column:total_amount"`
	Currency     string     `gorm:"column:currency"`
	Converted    bool       `gorm:"column:converted;not null;index:idx_cart_stale"`
	RecoverySent bool       `gorm:"column:recovery_sent;not null;index:idx_cart_stale"`
	RecoveryAt   *time.Time `gorm:"column:recovery_at"`
}

func (CartEntity) TableName() string {
	return "carts"
}

func toCartEntity(m *model.Cart) *CartEntity {
	if m == nil {
		return nil
	}
	return &CartEntity{
		Model:        pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		TenantID:     m.TenantID,
		CartToken:    m.CartToken,
		CustomerID:   m.CustomerID,
		Email:        m.Email,
		Phone:        m.Phone,
		TotalAmount:  m.TotalAmount,
		Currency:     m.Currency,
		Converted:    m.Converted,
		RecoverySent: m.RecoverySent,
		RecoveryAt:   m.RecoveryAt,
	}
}

func toCartModel(e *CartEntity) *model.Cart {
	if e == nil {
		return nil
	}
	return &model.Cart{
		ID:           e.ID,
		TenantID:     e.TenantID,
		CartToken:    e.CartToken,
		CustomerID:   e.CustomerID,
		Email:        e.Email,
		Phone:        e.Phone,
		TotalAmount:  e.TotalAmount,
		Currency:     e.Currency,
		Converted:    e.Converted,
		RecoverySent: e.RecoverySent,
		RecoveryAt:   e.RecoveryAt,
		CreatedAt:    e.CreatedAt,
	}
}

func toCartModels(entities []*CartEntity) []*model.Cart {
	models := make([]*model.Cart, len(entities))
	for i, e := range entities {
		models[i] = toCartModel(e)
	}
	return models
}
