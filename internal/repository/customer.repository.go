package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	e := toCustomerEntity(c)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toCustomerModel(e), nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	var e CustomerEntity
	err := r.Read(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&e), nil
}

// FindByContact returns the oldest tenant customer matching the email or
// the phone. Empty arguments are ignored.
func (r *CustomerRepository) FindByContact(ctx context.Context, tenantID, email, phone string) (*model.Customer, error) {
	q, ok := contactScope(r.Read(ctx).Where("tenant_id = ?", tenantID), email, phone)
	if !ok {
		return nil, ErrCustomerNotFound
	}
	var e CustomerEntity
	err := q.Order("created_at asc").First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&e), nil
}

// contactScope narrows q to rows matching email or phone. It reports false
// when both are empty.
func contactScope(q *gorm.DB, email, phone string) (*gorm.DB, bool) {
	switch {
	case email != "" && phone != "":
		return q.Where("email = ? OR phone = ?", email, phone), true
	case email != "":
		return q.Where("email = ?", email), true
	case phone != "":
		return q.Where("phone = ?", phone), true
	}
	return q, false
}
