package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
	"github.com/nimasrn/message-automation/pkg/worker"
)

const reasonPhoneMissing = "customer phone missing"

type JobStore interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error)
	MarkProcessed(ctx context.Context, id string, sentAt time.Time, providerMessageID string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	Reschedule(ctx context.Context, id string, reason string, next time.Time) error
}

type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
}

type JobProcessorConfig struct {
	BatchSize    int
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// JobProcessor sends due jobs through their channel's sender. Each tick
// handles one bounded batch; a job's failure is recorded on that job only.
type JobProcessor struct {
	jobs      JobStore
	customers CustomerStore
	senders   map[model.Channel]channel.Sender
	guard     *SendGuard
	config    JobProcessorConfig
	metrics   *ServiceMetrics
	now       func() time.Time
}

// NewJobProcessor builds a processor. guard may be nil when no redis is
// available; sends are then protected only by the job status transition.
func NewJobProcessor(jobs JobStore, customers CustomerStore, senders map[model.Channel]channel.Sender, guard *SendGuard, config JobProcessorConfig) *JobProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &JobProcessor{
		jobs:      jobs,
		customers: customers,
		senders:   senders,
		guard:     guard,
		config:    config,
		metrics:   NewServiceMetrics(),
		now:       time.Now,
	}
}

func (p *JobProcessor) Metrics() *ServiceMetrics {
	return p.metrics
}

// Tick processes the jobs due now. Only a failed lookup is returned.
func (p *JobProcessor) Tick(ctx context.Context) error {
	start := time.Now()
	due, err := p.jobs.FindDue(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load due jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	pool := worker.NewWorkerManager(len(due), p.config.Workers)
	pool.SetWorker(func(workerIndex int, job interface{}) {
		// jobs not reached before cancellation stay pending
		if ctx.Err() != nil {
			return
		}
		p.process(ctx, job.(*model.MessageJob))
	})
	pool.Start()
	for _, job := range due {
		pool.Enqueue(job)
	}
	pool.Exit()

	logger.Info("job tick finished", "due", len(due), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *JobProcessor) process(ctx context.Context, job *model.MessageJob) {
	start := time.Now()
	// outcomes are written even when the tick is being cancelled
	writeCtx := context.WithoutCancel(ctx)

	sender, ok := p.senders[job.Channel]
	if !ok {
		p.fail(writeCtx, job, fmt.Sprintf("%s: %s", channel.ErrChannelNotConfigured, job.Channel))
		return
	}

	phone, err := p.resolvePhone(ctx, job)
	if err != nil {
		logger.Warn("failed to load customer, job left pending", "job_id", job.ID, "customer_id", job.CustomerID, "error", err)
		return
	}
	if phone == "" {
		logger.Warn("job has no phone", "job_id", job.ID, "tenant_id", job.TenantID, "customer_id", job.CustomerID)
		p.fail(writeCtx, job, reasonPhoneMissing)
		return
	}

	var claim *Claim
	if p.guard != nil {
		if id, sent := p.guard.SentMessageID(ctx, job.ID); sent {
			logger.Info("job already delivered, completing", "job_id", job.ID)
			p.complete(writeCtx, job, id, start)
			return
		}
		c, err := p.guard.Acquire(ctx, job.ID)
		if err != nil {
			// left pending for the next tick
			logger.Warn("skipping job", "job_id", job.ID, "error", err)
			return
		}
		claim = c
	}

	res, err := sender.Send(ctx, job.TenantID, phone, job.Content)
	if err != nil {
		if claim != nil {
			_ = p.guard.Release(writeCtx, claim)
		}
		if ctx.Err() != nil {
			logger.Warn("tick cancelled during send, job left pending", "job_id", job.ID, "error", err)
			return
		}
		p.handleSendError(writeCtx, job, err)
		return
	}

	if claim != nil {
		if err := p.guard.MarkSent(writeCtx, claim, res.ProviderMessageID); err != nil {
			logger.Warn("failed to record delivery marker", "job_id", job.ID, "error", err)
		}
	}
	p.complete(writeCtx, job, res.ProviderMessageID, start)
}

// resolvePhone prefers the customer's current phone over the recipient
// captured at scheduling. A missing customer is not an error; a failed
// lookup is.
func (p *JobProcessor) resolvePhone(ctx context.Context, job *model.MessageJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if job.CustomerID != "" {
		customer, err := p.customers.GetByID(ctx, job.CustomerID)
		switch {
		case err == nil && customer.Phone != "":
			return customer.Phone, nil
		case err != nil && !errors.Is(err, repository.ErrCustomerNotFound):
			return "", err
		}
	}
	return job.Recipient, nil
}

func (p *JobProcessor) handleSendError(ctx context.Context, job *model.MessageJob, err error) {
	var providerErr *channel.ProviderError
	if errors.As(err, &providerErr) && job.Attempts+1 < p.config.MaxAttempts {
		next := p.now().Add(p.backoff(job.Attempts))
		if rerr := p.jobs.Reschedule(ctx, job.ID, err.Error(), next); rerr != nil {
			logger.Error("failed to reschedule job", "job_id", job.ID, "error", rerr)
			return
		}
		prom.JobProcessed(string(job.Channel), "retried")
		logger.Warn("job send failed, retrying", "job_id", job.ID, "tenant_id", job.TenantID, "attempt", job.Attempts+1, "next_at", next, "error", err)
		return
	}
	p.fail(ctx, job, err.Error())
}

// backoff doubles per prior attempt.
func (p *JobProcessor) backoff(attempts int) time.Duration {
	d := p.config.RetryBackoff
	for i := 0; i < attempts && d < 24*time.Hour; i++ {
		d *= 2
	}
	return d
}

func (p *JobProcessor) complete(ctx context.Context, job *model.MessageJob, providerMessageID string, start time.Time) {
	if err := p.jobs.MarkProcessed(ctx, job.ID, p.now(), providerMessageID); err != nil {
		logger.Error("failed to mark job processed", "job_id", job.ID, "error", err)
		return
	}
	p.metrics.RecordSuccess(time.Since(start))
	prom.JobProcessed(string(job.Channel), string(model.JobStatusProcessed))
	logger.Info("job sent", "job_id", job.ID, "tenant_id", job.TenantID, "channel", job.Channel, "provider_message_id", providerMessageID)
}

func (p *JobProcessor) fail(ctx context.Context, job *model.MessageJob, reason string) {
	p.metrics.RecordFailure()
	if err := p.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	prom.JobProcessed(string(job.Channel), string(model.JobStatusFailed))
	logger.Warn("job failed", "job_id", job.ID, "tenant_id", job.TenantID, "channel", job.Channel, "reason", reason)
}
