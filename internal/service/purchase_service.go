package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftlab/market-backend/internal/fee"
	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseService interface {
	// Checkout creates a purchase attempt for a listing. Exactly one of
	// buyerUID and guestEmail must be set. The purchase is created pending
	// payment; free claims skip escrow and are created released.
	Checkout(ctx context.Context, listingID uint64, buyerUID, guestEmail string) (*model.Purchase, error)
	// Capture records payment confirmation from the checkout flow: the
	// purchase enters holding escrow with its window stamped. Idempotent for
	// retried webhooks.
	Capture(ctx context.Context, checkoutRef, paymentRef string) (*model.Purchase, error)
	GetByID(ctx context.Context, id uint64, uid string) (*model.Purchase, error)
	ListByBuyer(ctx context.Context, buyerUID string) ([]model.Purchase, error)
	ListBySeller(ctx context.Context, sellerUID string) ([]model.Purchase, error)
}

type purchaseService struct {
	purchaseRepo repository.PurchaseRepository
	listingRepo  repository.ListingRepository
	userRepo     repository.UserRepository
	limiter      LimiterService
	notify       NotificationService
	now          func() time.Time
}

func NewPurchaseService(
	purchaseRepo repository.PurchaseRepository,
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	limiter LimiterService,
	notify NotificationService,
) PurchaseService {
	return &purchaseService{
		purchaseRepo: purchaseRepo,
		listingRepo:  listingRepo,
		userRepo:     userRepo,
		limiter:      limiter,
		notify:       notify,
		now:          time.Now,
	}
}

func (s *purchaseService) Checkout(ctx context.Context, listingID uint64, buyerUID, guestEmail string) (*model.Purchase, error) {
	if buyerUID == "" && guestEmail == "" {
		return nil, errors.New("buyer is required")
	}
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if listing.Status != model.ListingStatusActive {
		return nil, ErrListingUnavailable
	}
	if buyerUID != "" && listing.SellerUID == buyerUID {
		return nil, ErrOwnListing
	}

	if buyerUID != "" {
		buyer, err := s.userRepo.FindByUID(ctx, buyerUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if err := s.limiter.CheckBuyerSpend(ctx, buyer, listing.PriceCents); err != nil {
			return nil, err
		}
	} else {
		guestEmail = strings.ToLower(strings.TrimSpace(guestEmail))
		if err := s.limiter.CheckGuestSpend(ctx, guestEmail, listing.PriceCents); err != nil {
			return nil, err
		}
	}

	feeCents, sellerCents := fee.Split(listing.PriceCents)
	p := &model.Purchase{
		ListingID:         listing.ID,
		SellerUID:         listing.SellerUID,
		CheckoutRef:       uuid.NewString(),
		DeliveryMethod:    listing.DeliveryMethod,
		AmountPaidCents:   listing.PriceCents,
		PlatformFeeCents:  feeCents,
		SellerAmountCents: sellerCents,
		PaymentStatus:     model.PaymentStatusPending,
		DeliveryStatus:    model.DeliveryStatusPending,
	}
	if buyerUID != "" {
		p.BuyerUID = &buyerUID
	} else {
		p.GuestEmail = &guestEmail
	}

	// Free claims bypass escrow entirely: there is nothing to hold and
	// nothing for the scheduler to pay out.
	if listing.PriceCents == 0 {
		now := s.now()
		p.PaymentStatus = model.PaymentStatusCompleted
		p.EscrowStatus = model.EscrowStatusReleased
		p.EscrowReleasedAt = &now
		p.DeliveryStatus = model.DeliveryStatusAutoCompleted
	}

	if err := s.purchaseRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *purchaseService) Capture(ctx context.Context, checkoutRef, paymentRef string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.FindByCheckoutRef(ctx, checkoutRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.PaymentStatus != model.PaymentStatusPending {
		// Retried webhook; capture already happened.
		return p, nil
	}

	verified := false
	if seller, err := s.userRepo.FindByUID(ctx, p.SellerUID); err == nil {
		verified = model.SellerVerified(seller.TotalSales)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(fee.Window(p.DeliveryMethod, verified))
	delivery := model.DeliveryStatusPending
	if p.DeliveryMethod == model.DeliveryInstantDownload {
		delivery = model.DeliveryStatusAutoCompleted
	}

	n, err := s.purchaseRepo.MarkCaptured(ctx, p.ID, paymentRef, delivery, expiresAt)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost the race against another delivery of the same webhook.
		return s.purchaseRepo.FindByID(ctx, p.ID)
	}

	pid := p.ID
	s.notify.Notify(ctx, p.SellerUID, "purchase_captured", "You made a sale",
		fmt.Sprintf("Payment of $%d.%02d was captured; your share is held in escrow until %s.",
			p.AmountPaidCents/100, p.AmountPaidCents%100, expiresAt.Format(time.RFC1123)),
		&p.ListingID, &pid)

	return s.purchaseRepo.FindByID(ctx, p.ID)
}

func (s *purchaseService) GetByID(ctx context.Context, id uint64, uid string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if uid != "" && uid != p.SellerUID && (p.BuyerUID == nil || *p.BuyerUID != uid) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *purchaseService) ListByBuyer(ctx context.Context, buyerUID string) ([]model.Purchase, error) {
	if buyerUID == "" {
		return nil, errors.New("buyer is required")
	}
	return s.purchaseRepo.ListByBuyer(ctx, buyerUID)
}

func (s *purchaseService) ListBySeller(ctx context.Context, sellerUID string) ([]model.Purchase, error) {
	if sellerUID == "" {
		return nil, errors.New("seller is required")
	}
	return s.purchaseRepo.ListBySeller(ctx, sellerUID)
}
