package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository struct {
	*pg.DB
}

func NewCartRepository(db *pg.DB) *CartRepository {
	return &CartRepository{db}
}

// Upsert inserts the cart or refreshes the contact and totals of the
// existing (tenant, cartToken) row. Flags and createdAt are never touched.
func (r *CartRepository) Upsert(ctx context.Context, c *model.Cart) (*model.Cart, error) {
	e := toCartEntity(c)
	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "cart_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_id", "email", "phone", "total_amount", "currency", "updated_at"}),
	}).Create(e).Error
	if err != nil {
		return nil, err
	}
	return r.GetByToken(ctx, c.TenantID, c.CartToken)
}

func (r *CartRepository) GetByToken(ctx context.Context, tenantID, token string) (*model.Cart, error) {
	var e CartEntity
	err := r.Write(ctx).Where("tenant_id = ? AND cart_token = ?", tenantID, token).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return toCartModel(&e), nil
}

// FindStale returns carts that are unconverted, have had no recovery
// attempt, were created at or before cutoff and carry a phone.
func (r *CartRepository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Cart, error) {
	var entities []*CartEntity
	err := r.Write(ctx).
		Where("converted = ? AND recovery_sent = ? AND created_at <= ?", false, false, cutoff).
		Where("phone IS NOT NULL AND phone <> ''").
		Order("created_at asc").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCartModels(entities), nil
}

// MarkConvertedByContact flags every unconverted tenant cart matching the
// email or phone and returns how many changed.
func (r *CartRepository) MarkConvertedByContact(ctx context.Context, tenantID, email, phone string) (int64, error) {
	q, ok := contactScope(r.Write(ctx).Model(&CartEntity{}).Where("tenant_id = ? AND converted = ?", tenantID, false), email, phone)
	if !ok {
		return 0, nil
	}
	result := q.UpdateColumns(map[string]any{"converted": true, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}

// MarkRecoverySent sets the permanent dedup flag. It is a no-op for carts
// already flagged.
func (r *CartRepository) MarkRecoverySent(ctx context.Context, id string, at time.Time) error {
	return r.Write(ctx).
		Model(&CartEntity{}).
		Where("id = ? AND recovery_sent = ?", id, false).
		UpdateColumns(map[string]any{"recovery_sent": true, "recovery_at": at, "updated_at": at}).
		Error
}
