package handler

import (
	"net/http"

	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// JobsHandler exposes the batch jobs over HTTP so a scheduler (Cloud Scheduler,
// cron + curl) can trigger them. Access is gated by the job token middleware.
type JobsHandler struct {
	svc service.SettlementService
}

func NewJobsHandler(svc service.SettlementService) *JobsHandler {
	return &JobsHandler{svc: svc}
}

func (h *JobsHandler) ReleaseEscrow(c echo.Context) error {
	res, err := h.svc.ReleaseDue(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", err.Error()))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *JobsHandler) ReapStale(c echo.Context) error {
	res, err := h.svc.ReapStale(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", err.Error()))
	}
	return c.JSON(http.StatusOK, res)
}
