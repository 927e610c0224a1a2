package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type PurchaseHandler struct {
	svc service.PurchaseService
}

func NewPurchaseHandler(svc service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

type PurchaseResponse struct {
	ID                uint64  `json:"id"`
	ListingID         uint64  `json:"listingId"`
	SellerUID         string  `json:"sellerUid"`
	BuyerUID          *string `json:"buyerUid,omitempty"`
	GuestEmail        *string `json:"guestEmail,omitempty"`
	CheckoutRef       string  `json:"checkoutRef"`
	DeliveryMethod    string  `json:"deliveryMethod"`
	AmountPaidCents   int64   `json:"amountPaidCents"`
	PlatformFeeCents  int64   `json:"platformFeeCents"`
	SellerAmountCents int64   `json:"sellerAmountCents"`
	PaymentStatus     string  `json:"paymentStatus"`
	DeliveryStatus    string  `json:"deliveryStatus"`
	EscrowStatus      string  `json:"escrowStatus,omitempty"`
	EscrowExpiresAt   *string `json:"escrowExpiresAt,omitempty"`
	EscrowReleasedAt  *string `json:"escrowReleasedAt,omitempty"`
	DisputedAt        *string `json:"disputedAt,omitempty"`
	DisputeReason     *string `json:"disputeReason,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	val := t.Format(time.RFC3339)
	return &val
}

func toPurchaseResponse(p *model.Purchase) PurchaseResponse {
	var reason *string
	if p.DisputeReason != nil {
		val := string(*p.DisputeReason)
		reason = &val
	}
	return PurchaseResponse{
		ID:                p.ID,
		ListingID:         p.ListingID,
		SellerUID:         p.SellerUID,
		BuyerUID:          p.BuyerUID,
		GuestEmail:        p.GuestEmail,
		CheckoutRef:       p.CheckoutRef,
		DeliveryMethod:    string(p.DeliveryMethod),
		AmountPaidCents:   p.AmountPaidCents,
		PlatformFeeCents:  p.PlatformFeeCents,
		SellerAmountCents: p.SellerAmountCents,
		PaymentStatus:     string(p.PaymentStatus),
		DeliveryStatus:    string(p.DeliveryStatus),
		EscrowStatus:      string(p.EscrowStatus),
		EscrowExpiresAt:   timePtr(p.EscrowExpiresAt),
		EscrowReleasedAt:  timePtr(p.EscrowReleasedAt),
		DisputedAt:        timePtr(p.DisputedAt),
		DisputeReason:     reason,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

// Checkout starts a purchase. Authenticated buyers are identified by the token
// uid; guests must supply an email in the body.
func (h *PurchaseHandler) Checkout(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	var body struct {
		GuestEmail string `json:"guestEmail"`
	}
	_ = c.Bind(&body)
	if uid == "" && body.GuestEmail == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "sign in or provide a guest email"))
	}
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	p, err := h.svc.Checkout(c.Request().Context(), listingID, uid, body.GuestEmail)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toPurchaseResponse(p))
}

// CaptureWebhook is the payment confirmation callback. It is idempotent, so a
// retried delivery answers 200 again instead of erroring.
func (h *PurchaseHandler) CaptureWebhook(c echo.Context) error {
	var body struct {
		Reference  string `json:"reference"`
		PaymentRef string `json:"paymentRef"`
	}
	if err := c.Bind(&body); err != nil || body.Reference == "" || body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "reference and paymentRef are required"))
	}
	p, err := h.svc.Capture(c.Request().Context(), body.Reference, body.PaymentRef)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toPurchaseResponse(p))
}

func (h *PurchaseHandler) Get(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid purchase id"))
	}
	p, err := h.svc.GetByID(c.Request().Context(), id, uid)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toPurchaseResponse(p))
}

func (h *PurchaseHandler) ListMine(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.svc.ListByBuyer(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch purchases"))
	}
	resp := make([]PurchaseResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toPurchaseResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PurchaseHandler) ListSales(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.svc.ListBySeller(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch sales"))
	}
	resp := make([]PurchaseResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toPurchaseResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}
