package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/template"
	"github.com/nimasrn/message-automation/pkg/logger"
)

const (
	DefaultSMSTemplateName      = "Order Confirmation (SMS)"
	DefaultWhatsAppTemplateName = "Order Confirmation (WhatsApp)"
)

var defaultTemplates = []model.TemplateInput{
	{
		Name:    DefaultSMSTemplateName,
		Channel: model.ChannelSMS,
		Content: "Hi {{customer_name}}! Your order #{{order_number}} for {{total_amount}} {{currency}} has been confirmed. Thank you!",
	},
	{
		Name:    DefaultWhatsAppTemplateName,
		Channel: model.ChannelWhatsApp,
		Content: "Hello {{customer_name}}!\n\nYour order #{{order_number}} has been confirmed!\n\nTotal: {{total_amount}} {{currency}}\n\nThank you!",
	},
}

type TemplateRepository interface {
	Create(ctx context.Context, t *model.Template) (*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	ListByTenant(ctx context.Context, tenantID string, ch *model.Channel) ([]*model.Template, error)
	FindByName(ctx context.Context, tenantID, name string) (*model.Template, error)
}

type TemplateService struct {
	templates TemplateRepository
}

func NewTemplateService(templates TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

// Create stores a template. Variables are taken from the content's
// placeholders unless the caller lists them.
func (s *TemplateService) Create(ctx context.Context, in model.TemplateInput) (*model.Template, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.TenantID == "":
		return nil, fmt.Errorf("%w: tenantId is required", ErrInvalidInput)
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !in.Channel.Valid():
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, in.Channel)
	case strings.TrimSpace(in.Content) == "":
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	vars := in.Variables
	if len(vars) == 0 {
		vars = template.ExtractVariables(in.Content)
	}

	return s.templates.Create(ctx, &model.Template{
		TenantID:  in.TenantID,
		Name:      in.Name,
		Channel:   in.Channel,
		Content:   in.Content,
		Variables: vars,
		IsActive:  true,
	})
}

func (s *TemplateService) Get(ctx context.Context, tenantID, id string) (*model.Template, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.TenantID != tenantID {
		return nil, repository.ErrTemplateNotFound
	}
	return t, nil
}

func (s *TemplateService) List(ctx context.Context, tenantID string, ch *model.Channel) ([]*model.Template, error) {
	if ch != nil && !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, *ch)
	}
	return s.templates.ListByTenant(ctx, tenantID, ch)
}

// Seed creates the default order confirmation templates a tenant is missing
// and returns every default, existing or new.
func (s *TemplateService) Seed(ctx context.Context, tenantID string) ([]*model.Template, error) {
	out := make([]*model.Template, 0, len(defaultTemplates))
	created := 0
	for _, d := range defaultTemplates {
		existing, err := s.templates.FindByName(ctx, tenantID, d.Name)
		if err == nil {
			out = append(out, existing)
			continue
		}
		if !errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, err
		}

		d.TenantID = tenantID
		t, err := s.Create(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", d.Name, err)
		}
		out = append(out, t)
		created++
	}

	logger.Info("default templates seeded", "tenant_id", tenantID, "created", created)
	return out, nil
}
