package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
	"gorm.io/gorm"
)

type DisputeService interface {
	// Open freezes a purchase's escrow pending manual review. Only the buyer
	// of record may open one, only while escrow is holding, and only before
	// the window expires. A purchase is disputed at most once.
	Open(ctx context.Context, purchaseID uint64, buyerUID string, reason model.DisputeReason, notes string) (model.EscrowStatus, error)
}

type disputeService struct {
	purchaseRepo repository.PurchaseRepository
	userRepo     repository.UserRepository
	notify       NotificationService
	opsEmail     string
	now          func() time.Time
}

func NewDisputeService(
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
	notify NotificationService,
	opsEmail string,
) DisputeService {
	return &disputeService{
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
		notify:       notify,
		opsEmail:     opsEmail,
		now:          time.Now,
	}
}

func (s *disputeService) Open(ctx context.Context, purchaseID uint64, buyerUID string, reason model.DisputeReason, notes string) (model.EscrowStatus, error) {
	if !reason.Valid() {
		return "", ErrInvalidReason
	}
	p, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	// Guests have no account to dispute from; buyer of record only.
	if p.BuyerUID == nil || *p.BuyerUID != buyerUID {
		return "", ErrForbidden
	}
	now := s.now()
	switch p.EscrowStatus {
	case model.EscrowStatusDisputed:
		return "", ErrAlreadyDisputed
	case model.EscrowStatusHolding:
		if p.EscrowExpiresAt == nil || !p.EscrowExpiresAt.After(now) {
			return "", ErrDisputeWindowClosed
		}
	default:
		return "", rejectf("escrow_not_holding", "purchase is not in escrow (status: %s)", p.EscrowStatus)
	}

	// The freeze and the seller's dispute statistics commit in one
	// transaction inside the repository. Zero rows means some other writer
	// transitioned the purchase between our read and this commit.
	n, err := s.purchaseRepo.MarkDisputed(ctx, p.ID, p.SellerUID, reason, notes, now)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrConflict
	}

	// Everything past the commit is best-effort.
	pid := p.ID
	s.notify.Notify(ctx, p.SellerUID, "dispute_opened", "A buyer disputed a purchase",
		fmt.Sprintf("Purchase #%d was disputed (%s). Escrow is frozen pending review.", p.ID, reason),
		&p.ListingID, &pid)
	s.notify.Notify(ctx, buyerUID, "dispute_confirmed", "Your dispute was received",
		fmt.Sprintf("We froze escrow for purchase #%d and will review it shortly.", p.ID),
		&p.ListingID, &pid)
	if seller, err := s.userRepo.FindByUID(ctx, p.SellerUID); err == nil {
		s.notify.Email(ctx, seller.Email, "A purchase of yours was disputed",
			fmt.Sprintf("<p>Purchase #%d was disputed (%s). Funds stay in escrow until the dispute is resolved.</p>", p.ID, reason))
	}
	if buyer, err := s.userRepo.FindByUID(ctx, buyerUID); err == nil {
		s.notify.Email(ctx, buyer.Email, "We received your dispute",
			fmt.Sprintf("<p>Your dispute for purchase #%d is open. Our team will be in touch.</p>", p.ID))
	}
	s.notify.Email(ctx, s.opsEmail, fmt.Sprintf("Dispute opened on purchase #%d", p.ID),
		fmt.Sprintf("<p>Reason: %s</p><p>Notes: %s</p>", reason, notes))

	return model.EscrowStatusDisputed, nil
}
