package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/redis"
)

var (
	ErrAlreadySent       = errors.New("job already sent")
	ErrLockAcquireFailed = errors.New("failed to acquire send lock")
)

type GuardConfig struct {
	LockTTL time.Duration

	SentTTL time.Duration

	LockKeyPrefix string

	SentKeyPrefix string
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LockTTL:       time.Minute,
		SentTTL:       24 * time.Hour,
		LockKeyPrefix: "automation:job:lock:",
		SentKeyPrefix: "automation:job:sent:",
	}
}

// SendGuard keeps a job from reaching the provider twice. A lock covers the
// send itself; a sent marker, holding the provider message id, outlives it so
// a job whose status write failed is completed without sending again.
type SendGuard struct {
	redis  redis.RedisAdapter
	config GuardConfig
}

func NewSendGuard(adapter redis.RedisAdapter, config GuardConfig) *SendGuard {
	return &SendGuard{
		redis:  adapter,
		config: config,
	}
}

type Claim struct {
	JobID    string
	acquired bool
}

// SentMessageID reports the provider message id recorded for a job that was
// already delivered.
func (g *SendGuard) SentMessageID(ctx context.Context, jobID string) (string, bool) {
	val, err := g.redis.Get(ctx, g.config.SentKeyPrefix+jobID)
	if err != nil {
		if !errors.Is(err, redis.NilError) {
			logger.Warn("failed to read sent marker", "job_id", jobID, "error", err)
		}
		return "", false
	}
	return string(val), true
}

func (g *SendGuard) Acquire(ctx context.Context, jobID string) (*Claim, error) {
	if _, sent := g.SentMessageID(ctx, jobID); sent {
		return nil, ErrAlreadySent
	}

	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	acquired, err := g.redis.SetNX(ctx, g.config.LockKeyPrefix+jobID, lockValue, g.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Debug("send lock held elsewhere", "job_id", jobID)
		return nil, ErrLockAcquireFailed
	}

	return &Claim{JobID: jobID, acquired: true}, nil
}

func (g *SendGuard) MarkSent(ctx context.Context, c *Claim, providerMessageID string) error {
	if err := g.redis.Set(ctx, g.config.SentKeyPrefix+c.JobID, []byte(providerMessageID), g.config.SentTTL); err != nil {
		return fmt.Errorf("failed to set sent marker: %w", err)
	}
	return g.Release(ctx, c)
}

func (g *SendGuard) Release(ctx context.Context, c *Claim) error {
	if c == nil || !c.acquired {
		return nil
	}
	if err := g.redis.Del(ctx, g.config.LockKeyPrefix+c.JobID); err != nil {
		logger.Warn("failed to release send lock", "job_id", c.JobID, "error", err)
		return err
	}
	c.acquired = false
	return nil
}
