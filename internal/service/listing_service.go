package service

import (
	"context"
	"errors"

	"github.com/driftlab/market-backend/internal/fee"
	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
	"gorm.io/gorm"
)

type ListingService interface {
	// Create makes a new active listing. The seller's tier cap on active
	// listings is enforced before the row is written.
	Create(ctx context.Context, sellerUID, title, description string, priceCents int64, method model.DeliveryMethod) (*model.Listing, error)
	Get(ctx context.Context, id uint64) (*model.Listing, error)
	ListActive(ctx context.Context, limit int) ([]model.Listing, error)
	ListMine(ctx context.Context, sellerUID string) ([]model.Listing, error)
	Remove(ctx context.Context, id uint64, sellerUID string) error
}

type listingService struct {
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	limiter     LimiterService
}

func NewListingService(listingRepo repository.ListingRepository, userRepo repository.UserRepository, limiter LimiterService) ListingService {
	return &listingService{listingRepo: listingRepo, userRepo: userRepo, limiter: limiter}
}

func (s *listingService) Create(ctx context.Context, sellerUID, title, description string, priceCents int64, method model.DeliveryMethod) (*model.Listing, error) {
	if sellerUID == "" {
		return nil, errors.New("seller is required")
	}
	if title == "" {
		return nil, rejectf("bad_request", "title is required")
	}
	if priceCents < 0 {
		return nil, rejectf("bad_request", "price cannot be negative")
	}
	// A priced listing must at least cover the minimum platform fee, or the
	// fee split at checkout would owe the seller a negative amount. Free
	// listings stay allowed.
	if priceCents > 0 && priceCents < fee.MinimumFeeCents {
		return nil, rejectf("bad_request", "price must be free or at least %d cents", fee.MinimumFeeCents)
	}
	if !method.Valid() {
		return nil, rejectf("bad_request", "unknown delivery method %q", method)
	}
	seller, err := s.userRepo.FindByUID(ctx, sellerUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.limiter.CheckSellerListings(ctx, seller); err != nil {
		return nil, err
	}
	l := &model.Listing{
		SellerUID:      sellerUID,
		Title:          title,
		Description:    description,
		PriceCents:     priceCents,
		DeliveryMethod: method,
		Status:         model.ListingStatusActive,
	}
	if err := s.listingRepo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *listingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *listingService) ListActive(ctx context.Context, limit int) ([]model.Listing, error) {
	return s.listingRepo.ListActive(ctx, limit)
}

func (s *listingService) ListMine(ctx context.Context, sellerUID string) ([]model.Listing, error) {
	if sellerUID == "" {
		return nil, errors.New("seller is required")
	}
	return s.listingRepo.ListBySeller(ctx, sellerUID)
}

func (s *listingService) Remove(ctx context.Context, id uint64, sellerUID string) error {
	n, err := s.listingRepo.UpdateStatus(ctx, id, sellerUID, model.ListingStatusRemoved)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
