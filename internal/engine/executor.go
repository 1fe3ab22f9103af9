package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/template"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
)

type TemplateStore interface {
	Get(ctx context.Context, id string) (*model.Template, error)
}

type JobStore interface {
	Create(ctx context.Context, j *model.MessageJob) (*model.MessageJob, error)
}

type ConditionEvaluator interface {
	Evaluate(expr string, data map[string]string) (bool, error)
}

// StepExecutor turns a flow's steps into scheduled message jobs. It never
// sends anything itself.
type StepExecutor struct {
	templates  TemplateStore
	jobs       JobStore
	conditions ConditionEvaluator
	now        func() time.Time
}

func NewStepExecutor(templates TemplateStore, jobs JobStore, conditions ConditionEvaluator) *StepExecutor {
	return &StepExecutor{
		templates:  templates,
		jobs:       jobs,
		conditions: conditions,
		now:        time.Now,
	}
}

// Execute walks the steps in ascending order. A failing step is logged and
// the walk continues. It returns the number of jobs created.
func (e *StepExecutor) Execute(ctx context.Context, flow *model.Flow, data map[string]string) int {
	created := 0
	for _, step := range flow.Steps {
		if ctx.Err() != nil {
			logger.Warn("flow execution cancelled", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder)
			return created
		}
		ok, err := e.runStep(ctx, flow, step, data)
		if err != nil {
			logger.Error("step failed", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder, "action", step.ActionType, "error", err)
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

func (e *StepExecutor) runStep(ctx context.Context, flow *model.Flow, step model.Step, data map[string]string) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch step.ActionType {
	case model.ActionSendSMS, model.ActionSendWhatsApp:
		return e.schedule(ctx, flow, step, data)
	case model.ActionWait:
		if step.Wait != nil {
			logger.Debug("wait step", "flow_id", flow.ID, "step_order", step.StepOrder, "delay_minutes", step.Wait.DelayMinutes)
		}
		return false, nil
	case model.ActionCondition:
		e.evaluate(flow, step, data)
		return false, nil
	}
	logger.Warn("unknown step action, skipping", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder, "action", step.ActionType)
	return false, nil
}

func (e *StepExecutor) schedule(ctx context.Context, flow *model.Flow, step model.Step, data map[string]string) (bool, error) {
	ch, _ := step.Channel()
	if step.Send == nil {
		return false, fmt.Errorf("%w: send step has no config", model.ErrInvalidStep)
	}

	customerID := data[model.DataCustomerID]
	if customerID == "" {
		logger.Warn("no customerId, skipping send step", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder)
		return false, nil
	}

	content, err := e.content(ctx, flow.TenantID, step.Send, data)
	if err != nil {
		return false, err
	}
	if content == "" {
		logger.Warn("empty content, skipping send step", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder)
		return false, nil
	}

	job, err := e.jobs.Create(ctx, &model.MessageJob{
		TenantID:    flow.TenantID,
		CustomerID:  customerID,
		FlowID:      flow.ID,
		StepOrder:   step.StepOrder,
		Channel:     ch,
		Content:     content,
		Recipient:   data[model.DataCustomerPhone],
		ScheduledAt: e.now().Add(time.Duration(step.Send.DelayMinutes) * time.Minute),
		Status:      model.JobStatusPending,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create job: %w", err)
	}

	prom.JobCreated(string(ch))
	logger.Info("job scheduled", "tenant_id", flow.TenantID, "flow_id", flow.ID, "step_order", step.StepOrder, "job_id", job.ID, "channel", ch, "scheduled_at", job.ScheduledAt)
	return true, nil
}

// content renders the step's template, or returns its literal message.
func (e *StepExecutor) content(ctx context.Context, tenantID string, send *model.SendAction, data map[string]string) (string, error) {
	if send.TemplateID == "" {
		return send.Message, nil
	}
	tpl, err := e.templates.Get(ctx, send.TemplateID)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", send.TemplateID, err)
	}
	if tpl.TenantID != tenantID {
		return "", fmt.Errorf("template %s: %w", send.TemplateID, repository.ErrTemplateNotFound)
	}
	return template.Render(tpl.Content, data), nil
}

func (e *StepExecutor) evaluate(flow *model.Flow, step model.Step, data map[string]string) {
	if step.Condition == nil || e.conditions == nil {
		return
	}
	result, err := e.conditions.Evaluate(step.Condition.Expression, data)
	if err != nil {
		logger.Warn("condition evaluation failed", "flow_id", flow.ID, "step_order", step.StepOrder, "expression", step.Condition.Expression, "error", err)
		return
	}
	logger.Info("condition evaluated", "flow_id", flow.ID, "step_order", step.StepOrder, "expression", step.Condition.Expression, "result", result)
}
