package service

import (
	"context"
	"strings"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
)

// Daily spend ceilings by buyer tier, plus a flat cap for guest checkouts
// keyed by email. Seller listing ceilings by derived seller tier; -1 means
// unlimited.
const GuestDailyCapCents int64 = 5_000

var buyerDailyCapCents = map[model.BuyerTier]int64{
	model.BuyerTierNew:      25_000,
	model.BuyerTierVerified: 50_000,
	model.BuyerTierTrusted:  100_000,
}

var sellerListingCap = map[model.SellerTier]int64{
	model.SellerTierNew:      1,
	model.SellerTierVerified: 3,
	model.SellerTierTrusted:  10,
	model.SellerTierPro:      -1,
}

type LimiterService interface {
	// CheckBuyerSpend rejects a purchase attempt that would push the buyer's
	// spend since local midnight over their tier ceiling. Today's spend is
	// recomputed from completed purchases on every check; no running counter.
	CheckBuyerSpend(ctx context.Context, buyer *model.User, amountCents int64) error
	// CheckGuestSpend is the flat-cap variant for guest checkouts.
	CheckGuestSpend(ctx context.Context, email string, amountCents int64) error
	// CheckSellerListings rejects a new listing once the seller is at or above
	// their tier's active-listing cap.
	CheckSellerListings(ctx context.Context, seller *model.User) error
}

type limiterService struct {
	purchaseRepo repository.PurchaseRepository
	listingRepo  repository.ListingRepository
	now          func() time.Time
}

func NewLimiterService(purchaseRepo repository.PurchaseRepository, listingRepo repository.ListingRepository) LimiterService {
	return &limiterService{purchaseRepo: purchaseRepo, listingRepo: listingRepo, now: time.Now}
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *limiterService) CheckBuyerSpend(ctx context.Context, buyer *model.User, amountCents int64) error {
	limit, ok := buyerDailyCapCents[buyer.BuyerTier]
	if !ok {
		limit = buyerDailyCapCents[model.BuyerTierNew]
	}
	spent, err := s.purchaseRepo.SumPaidByBuyerSince(ctx, buyer.UID, localMidnight(s.now()))
	if err != nil {
		return err
	}
	return checkSpend(spent, amountCents, limit)
}

func (s *limiterService) CheckGuestSpend(ctx context.Context, email string, amountCents int64) error {
	email = strings.ToLower(strings.TrimSpace(email))
	spent, err := s.purchaseRepo.SumPaidByGuestSince(ctx, email, localMidnight(s.now()))
	if err != nil {
		return err
	}
	return checkSpend(spent, amountCents, GuestDailyCapCents)
}

func checkSpend(spentCents, amountCents, capCents int64) error {
	if spentCents+amountCents <= capCents {
		return nil
	}
	remaining := capCents - spentCents
	if remaining < 0 {
		remaining = 0
	}
	return rejectf("spend_limit_exceeded",
		"daily spend limit reached: $%d.%02d of your allowance remains today",
		remaining/100, remaining%100)
}

func (s *limiterService) CheckSellerListings(ctx context.Context, seller *model.User) error {
	tier := model.SellerTierOf(seller.TotalSales)
	limit := sellerListingCap[tier]
	if limit < 0 {
		return nil
	}
	active, err := s.listingRepo.CountActiveBySeller(ctx, seller.UID)
	if err != nil {
		return err
	}
	if active >= limit {
		return rejectf("listing_limit_exceeded",
			"your seller tier allows at most %d active listings; complete more sales to raise the limit", limit)
	}
	return nil
}
