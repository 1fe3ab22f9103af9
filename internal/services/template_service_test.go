package services

import (
	"context"
	"testing"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateService(t *testing.T) *TemplateService {
	return NewTemplateService(repository.NewTemplateRepository(setupTestDB(t)))
}

func TestTemplateService_CreateExtractsVariables(t *testing.T) {
	svc := newTemplateService(t)

	tpl, err := svc.Create(context.Background(), model.TemplateInput{
		TenantID: "t1",
		Name:     "Shipping",
		Channel:  model.ChannelSMS,
		Content:  "Hi {{customer_name}}, order {{ order_number }} shipped. {{customer_name}}",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_name", "order_number"}, tpl.Variables)
	assert.True(t, tpl.IsActive)
}

func TestTemplateService_CreateKeepsGivenVariables(t *testing.T) {
	svc := newTemplateService(t)

	tpl, err := svc.Create(context.Background(), model.TemplateInput{
		TenantID:  "t1",
		Name:      "Promo",
		Channel:   model.ChannelWhatsApp,
		Content:   "Hi {{customer_name}}",
		Variables: []string{"customer_name", "code"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_name", "code"}, tpl.Variables)
}

func TestTemplateService_CreateValidation(t *testing.T) {
	svc := newTemplateService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   model.TemplateInput
	}{
		{"missing tenant", model.TemplateInput{Name: "a", Channel: model.ChannelSMS, Content: "x"}},
		{"missing name", model.TemplateInput{TenantID: "t1", Channel: model.ChannelSMS, Content: "x"}},
		{"bad channel", model.TemplateInput{TenantID: "t1", Name: "a", Channel: "email", Content: "x"}},
		{"blank content", model.TemplateInput{TenantID: "t1", Name: "a", Channel: model.ChannelSMS, Content: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestTemplateService_GetChecksTenant(t *testing.T) {
	svc := newTemplateService(t)
	ctx := context.Background()

	tpl, err := svc.Create(ctx, model.TemplateInput{TenantID: "t1", Name: "a", Channel: model.ChannelSMS, Content: "x"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "t1", tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, got.ID)

	_, err = svc.Get(ctx, "t2", tpl.ID)
	assert.ErrorIs(t, err, repository.ErrTemplateNotFound)
}

func TestTemplateService_ListByChannel(t *testing.T) {
	svc := newTemplateService(t)
	ctx := context.Background()

	_, err := svc.Seed(ctx, "t1")
	require.NoError(t, err)

	all, err := svc.List(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	wa := model.ChannelWhatsApp
	only, err := svc.List(ctx, "t1", &wa)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, DefaultWhatsAppTemplateName, only[0].Name)

	bad := model.Channel("fax")
	_, err = svc.List(ctx, "t1", &bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTemplateService_SeedIsIdempotent(t *testing.T) {
	svc := newTemplateService(t)
	ctx := context.Background()

	first, err := svc.Seed(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"customer_name", "order_number", "total_amount", "currency"}, first[0].Variables)

	second, err := svc.Seed(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)

	all, err := svc.List(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
