package handler

import (
	"net/http"
	"strconv"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type DisputeHandler struct {
	svc service.DisputeService
}

func NewDisputeHandler(svc service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: svc}
}

func (h *DisputeHandler) Open(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	purchaseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid purchase id"))
	}
	var body struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	status, err := h.svc.Open(c.Request().Context(), purchaseID, uid, model.DisputeReason(body.Reason), body.Notes)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"escrowStatus": string(status)})
}
