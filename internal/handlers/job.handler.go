package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/message-automation/internal/model"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

type JobService interface {
	List(ctx context.Context, f model.JobFilter) ([]*model.MessageJob, error)
}

type JobHandler struct {
	svc JobService
}

func RegisterJobRoutes(e *router.Group, h *JobHandler) {
	e.GET("/tenants/{tenantId}/jobs", h.ListJobs)
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

type jobListResponse struct {
	Items []*model.MessageJob `json:"items"`
}

func (h *JobHandler) ListJobs(ctx *xhttp.RequestCtx) {
	f := model.JobFilter{
		TenantID: pathParam(ctx, "tenantId"),
		Status:   model.JobStatus(query(ctx, "status")),
		Limit:    queryInt(ctx, "limit"),
	}

	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, jobListResponse{Items: items})
}
