package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type ListingHandler struct {
	svc service.ListingService
}

func NewListingHandler(svc service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

type ListingResponse struct {
	ID             uint64 `json:"id"`
	SellerUID      string `json:"sellerUid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	PriceCents     int64  `json:"priceCents"`
	DeliveryMethod string `json:"deliveryMethod"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func toListingResponse(l *model.Listing) ListingResponse {
	return ListingResponse{
		ID:             l.ID,
		SellerUID:      l.SellerUID,
		Title:          l.Title,
		Description:    l.Description,
		PriceCents:     l.PriceCents,
		DeliveryMethod: string(l.DeliveryMethod),
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      l.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *ListingHandler) Create(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var body struct {
		Title          string `json:"title"`
		Description    string `json:"description"`
		PriceCents     int64  `json:"priceCents"`
		DeliveryMethod string `json:"deliveryMethod"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	l, err := h.svc.Create(c.Request().Context(), uid, body.Title, body.Description, body.PriceCents, model.DeliveryMethod(body.DeliveryMethod))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toListingResponse(l))
}

func (h *ListingHandler) List(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	list, err := h.svc.ListActive(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch listings"))
	}
	resp := make([]ListingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toListingResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func (h *ListingHandler) ListMine(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch listings"))
	}
	resp := make([]ListingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toListingResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ListingHandler) Remove(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	if err := h.svc.Remove(c.Request().Context(), id, uid); err != nil {
		return respondServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
