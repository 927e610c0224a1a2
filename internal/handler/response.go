package handler

import (
	"errors"
	"net/http"

	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// respondServiceError maps the service layer's sentinels and Rejections onto
// HTTP responses. Anything unrecognized is treated as an internal failure.
func respondServiceError(c echo.Context, err error) error {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(rej.Code, rej.Message))
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrOwnListing):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("own_listing", err.Error()))
	case errors.Is(err, service.ErrListingUnavailable):
		return c.JSON(http.StatusConflict, NewErrorResponse("listing_unavailable", err.Error()))
	case errors.Is(err, service.ErrAlreadyDisputed):
		return c.JSON(http.StatusConflict, NewErrorResponse("already_disputed", err.Error()))
	case errors.Is(err, service.ErrDisputeWindowClosed):
		return c.JSON(http.StatusConflict, NewErrorResponse("dispute_window_closed", err.Error()))
	case errors.Is(err, service.ErrInvalidReason):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", "state changed concurrently, retry"))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "something went wrong"))
	}
}
