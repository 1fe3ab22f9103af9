package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/queue"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/redis"
	"github.com/nimasrn/message-automation/pkg/worker"
)

const ProcessingTimeout = time.Second * 30
const HealthInterval = time.Second * 30
const MetricsInterval = time.Second * 30
const ShutdownTimeout = time.Minute

type EventDispatcher interface {
	Dispatch(ctx context.Context, ev model.TriggerEvent) (model.DispatchResult, error)
}

type ConsumerConfig struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
}

// EventConsumer reads trigger events off the stream and dispatches them on a
// worker pool. A message is acked once its event was dispatched or can never
// be; lookup failures leave it pending for redelivery.
type EventConsumer struct {
	adapter    redis.RedisAdapter
	dispatcher EventDispatcher
	config     ConsumerConfig
	queues     []*queue.Queue
	metrics    *ServiceMetrics
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	worker     *worker.WorkerManager
}

func NewEventConsumer(adapter redis.RedisAdapter, dispatcher EventDispatcher, config ConsumerConfig) *EventConsumer {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EventConsumer{
		adapter:    adapter,
		dispatcher: dispatcher,
		config:     config,
		metrics:    NewServiceMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		worker:     worker.NewWorkerManager(config.Workers*10, config.Workers),
	}
}

func (c *EventConsumer) Start() error {
	logger.Info("starting event consumer", "queue", c.config.Queue.Name)

	c.worker.SetWorker(c.workerHandler)
	c.worker.Start()

	for i := 0; i < c.config.Consumers; i++ {
		queueConfig := c.config.Queue
		queueConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", queueConfig.ConsumerName, i)

		q, err := queue.NewQueue(c.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(c.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		c.queues = append(c.queues, q)
	}

	c.wg.Add(2)
	go c.metricsReporter()
	go c.healthChecker()

	logger.Info("event consumer started", "consumers", len(c.queues), "workers", c.config.Workers)
	return nil
}

func (c *EventConsumer) Metrics() *ServiceMetrics {
	return c.metrics
}

func (c *EventConsumer) metricsReporter() {
	defer c.wg.Done()

	ticker := time.NewTicker(MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.reportMetrics()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *EventConsumer) reportMetrics() {
	stats := c.metrics.GetStats()
	logger.Info("event consumer metrics", "total_processed", stats["total_processed"], "total_failed", stats["total_failed"], "rate_per_second", stats["rate_per_second"], "avg_duration_ms", stats["avg_duration_ms"])

	if len(c.queues) == 0 {
		return
	}
	// every instance reads the same stream
	if qStats, err := c.queues[0].GetStats(context.Background()); err == nil {
		logger.Info("queue stats", "queue", c.queues[0].Name(), "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
	}
}

func (c *EventConsumer) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthCheck()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *EventConsumer) performHealthCheck() {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	if err := c.adapter.Client().Ping(ctx).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	if len(c.queues) == 0 {
		return
	}
	stats, err := c.queues[0].GetStats(ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "error", err)
		return
	}
	if stats.PendingMessages > 10000 {
		logger.Warn("health check: queue has high lag", "pending_messages", stats.PendingMessages)
	}
}

func (c *EventConsumer) Stop() {
	logger.Info("shutting down event consumer")

	c.cancel()

	var stopping sync.WaitGroup
	for i, q := range c.queues {
		stopping.Add(1)
		go func(index int, q *queue.Queue) {
			defer stopping.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue", "instance", index, "error", err)
			}
		}(i, q)
	}
	stopping.Wait()

	c.worker.Exit()
	c.wg.Wait()
	c.reportMetrics()

	logger.Info("event consumer stopped")
}

type dispatchJob struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the message to the pool and waits for its outcome.
func (c *EventConsumer) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	c.worker.Enqueue(&dispatchJob{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for dispatch: %w", msgCtx.Err())
	}
}

func (c *EventConsumer) workerHandler(workerIndex int, job interface{}) {
	dj, ok := job.(*dispatchJob)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-dj.ctx.Done():
		return
	default:
	}

	// resultChan is buffered
	dj.resultChan <- c.handle(dj.ctx, dj.msg)
}

func (c *EventConsumer) handle(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	ev, err := queue.DecodeEvent(msg)
	if err != nil {
		c.metrics.RecordFailure()
		logger.Error("dropping undecodable event", "message_id", msg.ID, "error", err)
		return nil
	}

	res, err := c.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		c.metrics.RecordFailure()
		if errors.Is(err, model.ErrInvalidEvent) || errors.Is(err, model.ErrInvalidTrigger) {
			logger.Error("dropping invalid event", "message_id", msg.ID, "tenant_id", ev.TenantID, "trigger", ev.Type, "error", err)
			return nil
		}
		return err
	}

	c.metrics.RecordSuccess(time.Since(start))
	logger.Debug("event dispatched", "message_id", msg.ID, "tenant_id", ev.TenantID, "trigger", ev.Type, "jobs_created", res.JobsCreated)
	return nil
}
