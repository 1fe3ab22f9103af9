package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/message-automation/internal/model"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

type FlowService interface {
	Create(ctx context.Context, in model.FlowInput) (*model.Flow, error)
	Update(ctx context.Context, id string, in model.FlowInput) (*model.Flow, error)
	Get(ctx context.Context, tenantID, id string) (*model.Flow, error)
	List(ctx context.Context, tenantID string) ([]*model.Flow, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) error
	Delete(ctx context.Context, tenantID, id string) error
	SeedDefaults(ctx context.Context, tenantID string) (*model.Flow, error)
}

type FlowHandler struct {
	svc FlowService
}

func RegisterFlowRoutes(e *router.Group, h *FlowHandler) {
	e.GET("/tenants/{tenantId}/flows", h.ListFlows)
	e.POST("/tenants/{tenantId}/flows", h.CreateFlow)
	e.GET("/tenants/{tenantId}/flows/{id}", h.GetFlow)
	e.PUT("/tenants/{tenantId}/flows/{id}", h.UpdateFlow)
	e.DELETE("/tenants/{tenantId}/flows/{id}", h.DeleteFlow)
	e.POST("/tenants/{tenantId}/flows/{id}/activate", h.ActivateFlow)
	e.POST("/tenants/{tenantId}/flows/{id}/deactivate", h.DeactivateFlow)
	e.POST("/tenants/{tenantId}/defaults/flows", h.SeedFlows)
}

func NewFlowHandler(svc FlowService) *FlowHandler {
	return &FlowHandler{svc: svc}
}

type flowListResponse struct {
	Items []*model.Flow `json:"items"`
}

func (h *FlowHandler) ListFlows(ctx *xhttp.RequestCtx) {
	items, err := h.svc.List(ctx, pathParam(ctx, "tenantId"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, flowListResponse{Items: items})
}

func (h *FlowHandler) CreateFlow(ctx *xhttp.RequestCtx) {
	var in model.FlowInput
	if err := readJSON(ctx, &in); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	in.TenantID = pathParam(ctx, "tenantId")

	flow, err := h.svc.Create(ctx, in)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, flow)
}

func (h *FlowHandler) GetFlow(ctx *xhttp.RequestCtx) {
	flow, err := h.svc.Get(ctx, pathParam(ctx, "tenantId"), pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, flow)
}

func (h *FlowHandler) UpdateFlow(ctx *xhttp.RequestCtx) {
	var in model.FlowInput
	if err := readJSON(ctx, &in); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	in.TenantID = pathParam(ctx, "tenantId")

	flow, err := h.svc.Update(ctx, pathParam(ctx, "id"), in)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, flow)
}

func (h *FlowHandler) DeleteFlow(ctx *xhttp.RequestCtx) {
	if err := h.svc.Delete(ctx, pathParam(ctx, "tenantId"), pathParam(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func (h *FlowHandler) ActivateFlow(ctx *xhttp.RequestCtx) {
	h.setActive(ctx, true)
}

func (h *FlowHandler) DeactivateFlow(ctx *xhttp.RequestCtx) {
	h.setActive(ctx, false)
}

func (h *FlowHandler) setActive(ctx *xhttp.RequestCtx, active bool) {
	tenantID, id := pathParam(ctx, "tenantId"), pathParam(ctx, "id")
	if err := h.svc.SetActive(ctx, tenantID, id, active); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"id": id, "isActive": active})
}

// SeedFlows answers 201 with the new flow, or 200 with created=false when
// the tenant already has it.
func (h *FlowHandler) SeedFlows(ctx *xhttp.RequestCtx) {
	flow, err := h.svc.SeedDefaults(ctx, pathParam(ctx, "tenantId"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if flow == nil {
		writeJSON(ctx, xhttp.StatusOK, map[string]any{"created": false})
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, map[string]any{"created": true, "flow": flow})
}
