package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/services"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
	"github.com/nimasrn/message-automation/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto status codes. Anything unknown
// is logged and hidden behind a 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidTrigger),
		errors.Is(err, model.ErrInvalidStep):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrFlowNotFound),
		errors.Is(err, repository.ErrTemplateNotFound),
		errors.Is(err, repository.ErrTenantNotFound),
		errors.Is(err, repository.ErrJobNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoDefaultTemplates):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
	}
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(query(ctx, key))
	return n
}
