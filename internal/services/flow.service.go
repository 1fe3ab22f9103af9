package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/logger"
)

const DefaultFlowName = "Order Confirmation Messages"

type FlowRepository interface {
	Create(ctx context.Context, f *model.Flow) (*model.Flow, error)
	Get(ctx context.Context, tenantID, id string) (*model.Flow, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*model.Flow, error)
	ExistsByName(ctx context.Context, tenantID, name string) (bool, error)
	Update(ctx context.Context, f *model.Flow) (*model.Flow, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) error
	Delete(ctx context.Context, tenantID, id string) error
}

type ConditionValidator interface {
	Validate(expr string) error
}

type TemplateSeeder interface {
	Seed(ctx context.Context, tenantID string) ([]*model.Template, error)
}

type FlowService struct {
	flows      FlowRepository
	templates  TemplateRepository
	conditions ConditionValidator
	seeder     TemplateSeeder
}

func NewFlowService(flows FlowRepository, templates TemplateRepository, conditions ConditionValidator, seeder TemplateSeeder) *FlowService {
	return &FlowService{
		flows:      flows,
		templates:  templates,
		conditions: conditions,
		seeder:     seeder,
	}
}

// Create validates the input and stores the flow with its steps numbered
// 1..N in input order. New flows are active unless isActive says otherwise.
func (s *FlowService) Create(ctx context.Context, in model.FlowInput) (*model.Flow, error) {
	flow, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	flow.IsActive = in.IsActive == nil || *in.IsActive

	created, err := s.flows.Create(ctx, flow)
	if err != nil {
		return nil, err
	}
	logger.Info("flow created", "tenant_id", created.TenantID, "flow_id", created.ID, "trigger", created.Trigger, "steps", len(created.Steps))
	return created, nil
}

// Update replaces the flow's attributes and all of its steps. isActive is
// kept when the input leaves it out.
func (s *FlowService) Update(ctx context.Context, id string, in model.FlowInput) (*model.Flow, error) {
	existing, err := s.flows.Get(ctx, in.TenantID, id)
	if err != nil {
		return nil, err
	}

	flow, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	flow.ID = existing.ID
	flow.IsActive = existing.IsActive
	if in.IsActive != nil {
		flow.IsActive = *in.IsActive
	}

	updated, err := s.flows.Update(ctx, flow)
	if err != nil {
		return nil, err
	}
	logger.Info("flow updated", "tenant_id", updated.TenantID, "flow_id", updated.ID, "steps", len(updated.Steps))
	return updated, nil
}

func (s *FlowService) Get(ctx context.Context, tenantID, id string) (*model.Flow, error) {
	return s.flows.Get(ctx, tenantID, id)
}

func (s *FlowService) List(ctx context.Context, tenantID string) ([]*model.Flow, error) {
	return s.flows.ListByTenant(ctx, tenantID)
}

func (s *FlowService) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	if err := s.flows.SetActive(ctx, tenantID, id, active); err != nil {
		return err
	}
	logger.Info("flow activation changed", "tenant_id", tenantID, "flow_id", id, "active", active)
	return nil
}

func (s *FlowService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.flows.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	logger.Info("flow deleted", "tenant_id", tenantID, "flow_id", id)
	return nil
}

// SeedDefaults creates the order confirmation flow, seeding its templates
// first. It returns nil when the tenant already has a flow by that name.
func (s *FlowService) SeedDefaults(ctx context.Context, tenantID string) (*model.Flow, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidInput)
	}
	exists, err := s.flows.ExistsByName(ctx, tenantID, DefaultFlowName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	templates, err := s.seeder.Seed(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var steps []model.StepInput
	for _, ch := range []model.Channel{model.ChannelSMS, model.ChannelWhatsApp} {
		for _, t := range templates {
			if t.Channel == ch {
				steps = append(steps, model.StepInput{ActionType: sendAction(ch), TemplateID: t.ID})
				break
			}
		}
	}
	if len(steps) == 0 {
		return nil, ErrNoDefaultTemplates
	}

	return s.Create(ctx, model.FlowInput{
		TenantID: tenantID,
		Name:     DefaultFlowName,
		Trigger:  string(model.TriggerOrderCreated),
		Steps:    steps,
	})
}

func (s *FlowService) build(ctx context.Context, in model.FlowInput) (*model.Flow, error) {
	in.Name = strings.TrimSpace(in.Name)
	trigger := model.Trigger(in.Trigger)
	switch {
	case in.TenantID == "":
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidInput)
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !trigger.Valid():
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidTrigger, in.Trigger)
	case len(in.Steps) == 0:
		return nil, fmt.Errorf("%w: a flow needs at least one step", model.ErrInvalidStep)
	}

	steps := make([]model.Step, 0, len(in.Steps))
	for _, si := range in.Steps {
		step, err := si.ToStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	steps = model.NormalizeStepOrder(steps)

	for _, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, err
		}
		if err := s.checkStep(ctx, in.TenantID, step); err != nil {
			return nil, err
		}
	}

	return &model.Flow{
		TenantID:    in.TenantID,
		Name:        in.Name,
		Description: in.Description,
		Trigger:     trigger,
		Steps:       steps,
	}, nil
}

// checkStep resolves what Validate cannot: template ownership and channel,
// and whether a condition compiles.
func (s *FlowService) checkStep(ctx context.Context, tenantID string, step model.Step) error {
	switch {
	case step.Send != nil && step.Send.TemplateID != "":
		t, err := s.templates.Get(ctx, step.Send.TemplateID)
		if err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				return fmt.Errorf("%w: step %d references unknown template %s", model.ErrInvalidStep, step.StepOrder, step.Send.TemplateID)
			}
			return err
		}
		ch, _ := step.Channel()
		if t.TenantID != tenantID {
			return fmt.Errorf("%w: step %d references unknown template %s", model.ErrInvalidStep, step.StepOrder, step.Send.TemplateID)
		}
		if t.Channel != ch {
			return fmt.Errorf("%w: step %d is %s but template %s is %s", model.ErrInvalidStep, step.StepOrder, ch, t.ID, t.Channel)
		}
	case step.Condition != nil:
		if err := s.conditions.Validate(step.Condition.Expression); err != nil {
			return fmt.Errorf("%w: step %d: %v", model.ErrInvalidStep, step.StepOrder, err)
		}
	}
	return nil
}

func sendAction(ch model.Channel) model.ActionType {
	if ch == model.ChannelWhatsApp {
		return model.ActionSendWhatsApp
	}
	return model.ActionSendSMS
}
