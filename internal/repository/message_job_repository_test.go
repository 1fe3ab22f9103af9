package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(tenantID string, scheduledAt time.Time) *model.MessageJob {
	return &model.MessageJob{
		TenantID:    tenantID,
		CustomerID:  "1007",
		Channel:     model.ChannelSMS,
		Content:     "hello",
		Recipient:   "+15550001",
		ScheduledAt: scheduledAt,
	}
}

func TestMessageJobRepository_FindDue(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageJobRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	later, err := repo.Create(ctx, newJob("t1", now.Add(time.Hour)))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newJob("t1", now.Add(-time.Minute)))
	require.NoError(t, err)
	first, err := repo.Create(ctx, newJob("t1", now.Add(-time.Hour)))
	require.NoError(t, err)
	done, err := repo.Create(ctx, newJob("t1", now.Add(-2*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessed(ctx, done.ID, now, "prov-1"))

	due, err := repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)
	assert.Equal(t, model.JobStatusPending, due[0].Status)

	limited, err := repo.FindDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := repo.FindDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, later.ID, all[2].ID)
}

func TestMessageJobRepository_Transitions(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageJobRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("processed", func(t *testing.T) {
		job, err := repo.Create(ctx, newJob("t1", now))
		require.NoError(t, err)

		require.NoError(t, repo.MarkProcessed(ctx, job.ID, now, "SM123"))

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessed, got.Status)
		assert.Equal(t, "SM123", got.ProviderMessageID)
		assert.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.SentAt)
		assert.Nil(t, got.LastError)
	})

	t.Run("failed is terminal", func(t *testing.T) {
		job, err := repo.Create(ctx, newJob("t1", now))
		require.NoError(t, err)

		require.NoError(t, repo.MarkFailed(ctx, job.ID, "SMS quota exceeded"))

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "SMS quota exceeded", *got.LastError)

		assert.ErrorIs(t, repo.MarkProcessed(ctx, job.ID, now, "x"), ErrJobNotPending)
		assert.ErrorIs(t, repo.MarkFailed(ctx, job.ID, "again"), ErrJobNotPending)
	})

	t.Run("reschedule keeps pending", func(t *testing.T) {
		job, err := repo.Create(ctx, newJob("t1", now))
		require.NoError(t, err)

		next := now.Add(2 * time.Minute)
		require.NoError(t, repo.Reschedule(ctx, job.ID, "timeout", next))

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.True(t, next.Equal(got.ScheduledAt))
	})

	t.Run("unknown job", func(t *testing.T) {
		err := repo.MarkFailed(ctx, "00000000-0000-0000-0000-000000000000", "x")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestMessageJobRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, newJob("t1", now))
		require.NoError(t, err)
	}
	failed, err := repo.Create(ctx, newJob("t1", now))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "boom"))
	_, err = repo.Create(ctx, newJob("t2", now))
	require.NoError(t, err)

	all, err := repo.List(ctx, model.JobFilter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	onlyFailed, err := repo.List(ctx, model.JobFilter{TenantID: "t1", Status: model.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, failed.ID, onlyFailed[0].ID)

	limited, err := repo.List(ctx, model.JobFilter{TenantID: "t1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
