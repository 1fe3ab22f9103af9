package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
)

type FlowStore interface {
	FindActiveByTrigger(ctx context.Context, tenantID string, trigger model.Trigger) ([]*model.Flow, error)
	RecordExecution(ctx context.Context, id string, at time.Time) error
}

// Dispatcher fans a trigger event out to every active flow bound to it.
type Dispatcher struct {
	flows    FlowStore
	executor *StepExecutor
	now      func() time.Time
}

func NewDispatcher(flows FlowStore, executor *StepExecutor) *Dispatcher {
	return &Dispatcher{
		flows:    flows,
		executor: executor,
		now:      time.Now,
	}
}

// Dispatch runs each matching flow with its own copy of the event data. A
// failing flow is logged and counted; it never stops the others. Only an
// invalid event or a failed flow lookup is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.TriggerEvent) (model.DispatchResult, error) {
	var res model.DispatchResult
	if err := ev.Validate(); err != nil {
		return res, err
	}

	flows, err := d.flows.FindActiveByTrigger(ctx, ev.TenantID, ev.Type)
	if err != nil {
		return res, fmt.Errorf("failed to load flows: %w", err)
	}
	res.Matched = len(flows)
	if len(flows) == 0 {
		logger.Debug("no flows matched", "tenant_id", ev.TenantID, "trigger", ev.Type)
		return res, nil
	}

	for _, flow := range flows {
		jobs, err := d.run(ctx, flow, ev.CopyData())
		res.JobsCreated += jobs
		if err != nil {
			res.Failed++
			prom.FlowFailed(string(ev.Type))
			logger.Error("flow execution failed", "tenant_id", ev.TenantID, "flow_id", flow.ID, "trigger", ev.Type, "error", err)
			continue
		}
		res.Executed++
		prom.FlowExecuted(string(ev.Type))

		if err := d.flows.RecordExecution(ctx, flow.ID, d.now()); err != nil {
			logger.Error("failed to record flow execution", "tenant_id", ev.TenantID, "flow_id", flow.ID, "error", err)
		}
	}

	logger.Info("trigger dispatched", "tenant_id", ev.TenantID, "trigger", ev.Type, "matched", res.Matched, "executed", res.Executed, "failed", res.Failed, "jobs_created", res.JobsCreated)
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, flow *model.Flow, data map[string]string) (jobs int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.executor.Execute(ctx, flow, data), nil
}
