package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/message-automation/internal/model"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

type TemplateService interface {
	Create(ctx context.Context, in model.TemplateInput) (*model.Template, error)
	Get(ctx context.Context, tenantID, id string) (*model.Template, error)
	List(ctx context.Context, tenantID string, ch *model.Channel) ([]*model.Template, error)
	Seed(ctx context.Context, tenantID string) ([]*model.Template, error)
}

type TemplateHandler struct {
	svc TemplateService
}

func RegisterTemplateRoutes(e *router.Group, h *TemplateHandler) {
	e.GET("/tenants/{tenantId}/templates", h.ListTemplates)
	e.POST("/tenants/{tenantId}/templates", h.CreateTemplate)
	e.GET("/tenants/{tenantId}/templates/{id}", h.GetTemplate)
	e.POST("/tenants/{tenantId}/defaults/templates", h.SeedTemplates)
}

func NewTemplateHandler(svc TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

type templateListResponse struct {
	Items []*model.Template `json:"items"`
}

func (h *TemplateHandler) ListTemplates(ctx *xhttp.RequestCtx) {
	var ch *model.Channel
	if v := query(ctx, "channel"); v != "" {
		c := model.Channel(v)
		ch = &c
	}

	items, err := h.svc.List(ctx, pathParam(ctx, "tenantId"), ch)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, templateListResponse{Items: items})
}

func (h *TemplateHandler) CreateTemplate(ctx *xhttp.RequestCtx) {
	var in model.TemplateInput
	if err := readJSON(ctx, &in); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	in.TenantID = pathParam(ctx, "tenantId")

	t, err := h.svc.Create(ctx, in)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, t)
}

func (h *TemplateHandler) GetTemplate(ctx *xhttp.RequestCtx) {
	t, err := h.svc.Get(ctx, pathParam(ctx, "tenantId"), pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, t)
}

func (h *TemplateHandler) SeedTemplates(ctx *xhttp.RequestCtx) {
	items, err := h.svc.Seed(ctx, pathParam(ctx, "tenantId"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, templateListResponse{Items: items})
}
