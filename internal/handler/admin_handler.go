package handler

import (
	"net/http"
	"strconv"

	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	svc service.SettlementService
}

func NewAdminHandler(svc service.SettlementService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Resolve closes a dispute (or an open hold) in one direction or the other:
// release pays the seller, refund closes in the buyer's favor.
func (h *AdminHandler) Resolve(c echo.Context) error {
	purchaseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid purchase id"))
	}
	var body struct {
		Outcome    string `json:"outcome"`
		Resolution string `json:"resolution"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	ctx := c.Request().Context()
	switch body.Outcome {
	case "release":
		p, err := h.svc.ResolveRelease(ctx, purchaseID, body.Resolution)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(http.StatusOK, toPurchaseResponse(p))
	case "refund":
		p, err := h.svc.ResolveRefund(ctx, purchaseID, body.Resolution)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(http.StatusOK, toPurchaseResponse(p))
	default:
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "outcome must be release or refund"))
	}
}
