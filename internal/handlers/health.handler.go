package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	res := healthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}

	checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	for name, check := range h.checks {
		if err := check(checkCtx); err != nil {
			res.Status = "unhealthy"
			res.Checks[name] = err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}

	status := xhttp.StatusOK
	if res.Status != "healthy" {
		status = xhttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, res)
}
