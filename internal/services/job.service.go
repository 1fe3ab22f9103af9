package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/message-automation/internal/model"
)

const maxJobListLimit = 200

type JobRepository interface {
	List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error)
}

type JobService struct {
	jobs JobRepository
}

func NewJobService(jobs JobRepository) *JobService {
	return &JobService{jobs: jobs}
}

// List returns a tenant's latest jobs, newest first.
func (s *JobService) List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error) {
	if f.TenantID == "" {
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidInput)
	}
	switch f.Status {
	case "", model.JobStatusPending, model.JobStatusProcessed, model.JobStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Limit > maxJobListLimit {
		f.Limit = maxJobListLimit
	}
	return s.jobs.List(ctx, f)
}
