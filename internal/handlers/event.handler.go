package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/services"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

type EventService interface {
	Ingest(ctx context.Context, ev model.TriggerEvent) (*services.IngestResult, error)
}

type EventHandler struct {
	svc EventService
}

func RegisterEventRoutes(e *router.Group, h *EventHandler) {
	e.POST("/events", h.PostEvent)
}

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// PostEvent answers 202 when the event was queued for the engine and 200
// with the dispatch outcome when it ran inline.
func (h *EventHandler) PostEvent(ctx *xhttp.RequestCtx) {
	var ev model.TriggerEvent
	if err := readJSON(ctx, &ev); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.Ingest(ctx, ev)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if res.Queued {
		writeJSON(ctx, xhttp.StatusAccepted, res)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
