package handler

import (
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userRepo   repository.UserRepository
	authClient *auth.Client
}

func NewUserHandler(userRepo repository.UserRepository, authClient *auth.Client) *UserHandler {
	return &UserHandler{userRepo: userRepo, authClient: authClient}
}

type MeResponse struct {
	UID           string  `json:"uid"`
	Email         string  `json:"email"`
	DisplayName   string  `json:"displayName"`
	BuyerTier     string  `json:"buyerTier"`
	SellerTier    string  `json:"sellerTier"`
	TotalSales    int64   `json:"totalSales"`
	TotalDisputes int64   `json:"totalDisputes"`
	DisputeRate   float64 `json:"disputeRate"`
	PayoutReady   bool    `json:"payoutReady"`
	CreatedAt     string  `json:"createdAt"`
}

func toMeResponse(u *model.User) MeResponse {
	return MeResponse{
		UID:           u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		BuyerTier:     string(u.BuyerTier),
		SellerTier:    string(model.SellerTierOf(u.TotalSales)),
		TotalSales:    u.TotalSales,
		TotalDisputes: u.TotalDisputes,
		DisputeRate:   u.DisputeRate,
		PayoutReady:   u.StripeAccountID != nil,
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
	}
}

// Sync provisions or refreshes the caller's profile row from the identity
// provider record. Clients call it once after sign-in.
func (h *UserHandler) Sync(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	record, err := h.authClient.GetUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusBadGateway, NewErrorResponse("auth_unavailable", "could not load identity record"))
	}
	u := &model.User{
		UID:         uid,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		BuyerTier:   model.BuyerTierNew,
	}
	if err := h.userRepo.Upsert(c.Request().Context(), u); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to save profile"))
	}
	stored, err := h.userRepo.FindByUID(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to load profile"))
	}
	return c.JSON(http.StatusOK, toMeResponse(stored))
}

func (h *UserHandler) Me(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	u, err := h.userRepo.FindByUID(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "profile not found; sync first"))
	}
	return c.JSON(http.StatusOK, toMeResponse(u))
}
