package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/message-automation/internal/model"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

type QuotaService interface {
	Get(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error)
	Allocate(ctx context.Context, tenantID string, ch model.Channel, allocated int, resetDate *time.Time) (*model.QuotaStatus, error)
	Reset(ctx context.Context, tenantID string, ch model.Channel) (*model.QuotaStatus, error)
}

type QuotaHandler struct {
	svc QuotaService
}

func RegisterQuotaRoutes(e *router.Group, h *QuotaHandler) {
	e.GET("/tenants/{tenantId}/quota/{channel}", h.GetQuota)
	e.PUT("/tenants/{tenantId}/quota/{channel}", h.AllocateQuota)
	e.POST("/tenants/{tenantId}/quota/{channel}/reset", h.ResetQuota)
}

func NewQuotaHandler(svc QuotaService) *QuotaHandler {
	return &QuotaHandler{svc: svc}
}

type allocateQuotaRequest struct {
	Allocated *int       `json:"allocated"`
	ResetDate *time.Time `json:"resetDate"`
}

func (h *QuotaHandler) GetQuota(ctx *xhttp.RequestCtx) {
	st, err := h.svc.Get(ctx, pathParam(ctx, "tenantId"), model.Channel(pathParam(ctx, "channel")))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, st)
}

func (h *QuotaHandler) AllocateQuota(ctx *xhttp.RequestCtx) {
	var req allocateQuotaRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Allocated == nil {
		writeError(ctx, xhttp.StatusBadRequest, "allocated is required")
		return
	}

	st, err := h.svc.Allocate(ctx, pathParam(ctx, "tenantId"), model.Channel(pathParam(ctx, "channel")), *req.Allocated, req.ResetDate)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, st)
}

func (h *QuotaHandler) ResetQuota(ctx *xhttp.RequestCtx) {
	st, err := h.svc.Reset(ctx, pathParam(ctx, "tenantId"), model.Channel(pathParam(ctx, "channel")))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, st)
}
