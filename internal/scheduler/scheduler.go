package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
)

type Task func(ctx context.Context) error

// Recurring runs Task every Interval until the context passed to Run is
// cancelled. Runs never overlap: a tick that outlasts the interval delays
// the next one rather than stacking behind it.
type Recurring struct {
	Name     string
	Interval time.Duration
	Task     Task

	// RunAtStart fires the first tick immediately instead of after one interval.
	RunAtStart bool
}

// Run blocks until ctx is done.
func (r *Recurring) Run(ctx context.Context) {
	if r.Interval <= 0 {
		logger.Error("recurring task has no interval", "task", r.Name)
		return
	}

	logger.Info("recurring task started", "task", r.Name, "interval", r.Interval)
	defer logger.Info("recurring task stopped", "task", r.Name)

	if r.RunAtStart {
		r.tick(ctx)
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recurring) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := r.safeRun(ctx)
	prom.TickDuration(r.Name, time.Since(start).Seconds())
	if err != nil {
		logger.Error("recurring task failed", "task", r.Name, "error", err)
	}
}

func (r *Recurring) safeRun(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Task(ctx)
}

// Group runs several recurring tasks and waits for all of them on Stop.
type Group struct {
	tasks  []*Recurring
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewGroup(tasks ...*Recurring) *Group {
	return &Group{tasks: tasks}
}

func (g *Group) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	for _, t := range g.tasks {
		g.wg.Add(1)
		go func(t *Recurring) {
			defer g.wg.Done()
			t.Run(ctx)
		}(t)
	}
}

func (g *Group) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}
