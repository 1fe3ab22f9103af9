package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/pg"
	"gorm.io/gorm"
)

const defaultJobListLimit = 50

type MessageJobRepository struct {
	*pg.DB
}

func NewMessageJobRepository(db *pg.DB) *MessageJobRepository {
	return &MessageJobRepository{db}
}

func (r *MessageJobRepository) Create(ctx context.Context, j *model.MessageJob) (*model.MessageJob, error) {
	e := toMessageJobEntity(j)
	if e.Status == "" {
		e.Status = string(model.JobStatusPending)
	}
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toMessageJobModel(e), nil
}

func (r *MessageJobRepository) Get(ctx context.Context, id string) (*model.MessageJob, error) {
	var e MessageJobEntity
	err := r.Read(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toMessageJobModel(&e), nil
}

// FindDue returns up to limit pending jobs scheduled at or before now.
func (r *MessageJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error) {
	var entities []*MessageJobEntity
	err := r.Write(ctx).
		Where("status = ? AND scheduled_at <= ?", string(model.JobStatusPending), now).
		Order("scheduled_at asc").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toMessageJobModels(entities), nil
}

func (r *MessageJobRepository) List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error) {
	q := r.Read(ctx).Where("tenant_id = ?", f.TenantID)
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	var entities []*MessageJobEntity
	if err := q.Order("created_at desc").Limit(limit).Find(&entities).Error; err != nil {
		return nil, err
	}
	return toMessageJobModels(entities), nil
}

// MarkProcessed moves a pending job to processed.
func (r *MessageJobRepository) MarkProcessed(ctx context.Context, id string, sentAt time.Time, providerMessageID string) error {
	return r.transition(ctx, id, map[string]any{
		"status":              string(model.JobStatusProcessed),
		"sent_at":             sentAt,
		"provider_message_id": providerMessageID,
		"attempts":            gorm.Expr("attempts + 1"),
		"last_error":          nil,
	})
}

// MarkFailed moves a pending job to the terminal failed state.
func (r *MessageJobRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.transition(ctx, id, map[string]any{
		"status":     string(model.JobStatusFailed),
		"last_error": reason,
		"attempts":   gorm.Expr("attempts + 1"),
	})
}

// Reschedule records a failed attempt but keeps the job pending until next.
func (r *MessageJobRepository) Reschedule(ctx context.Context, id string, reason string, next time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"scheduled_at": next,
		"last_error":   reason,
		"attempts":     gorm.Expr("attempts + 1"),
	})
}

func (r *MessageJobRepository) transition(ctx context.Context, id string, values map[string]any) error {
	values["updated_at"] = time.Now()
	result := r.Write(ctx).
		Model(&MessageJobEntity{}).
		Where("id = ? AND status = ?", id, string(model.JobStatusPending)).
		UpdateColumns(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrJobNotPending
	}
	return nil
}
