package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/payment"
	"github.com/driftlab/market-backend/internal/repository"
	"gorm.io/gorm"
)

// Result reports one settlement run. Per-item failures land in Errors and are
// retried on the next run; only a failure of the run itself (the candidate
// query) is returned as an error.
type Result struct {
	Processed int      `json:"processed"`
	Released  int      `json:"released"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type ReapResult struct {
	DeletedCount int      `json:"deletedCount"`
	DeletedIDs   []uint64 `json:"deletedIds"`
}

type SettlementService interface {
	// ReleaseDue settles every purchase whose escrow window has elapsed. Safe
	// to invoke concurrently: the conditional commit in the repository lets at
	// most one run release a given purchase, and the gateway's idempotency key
	// keeps a racing run's duplicate transfer from moving money twice.
	ReleaseDue(ctx context.Context) (*Result, error)
	// ReapStale hard-deletes purchase attempts that never reached payment
	// capture within the staleness threshold.
	ReapStale(ctx context.Context) (*ReapResult, error)
	// ResolveRelease is the staff path out of a dispute (or an open hold):
	// same transfer and conditional-commit discipline as the batch.
	ResolveRelease(ctx context.Context, purchaseID uint64, resolution string) (*model.Purchase, error)
	// ResolveRefund closes a holding or disputed purchase in the buyer's
	// favor. The charge refund itself happens upstream in the processor.
	ResolveRefund(ctx context.Context, purchaseID uint64, resolution string) (*model.Purchase, error)
}

type settlementService struct {
	purchaseRepo   repository.PurchaseRepository
	userRepo       repository.UserRepository
	gateway        payment.Gateway
	notify         NotificationService
	staleAfter     time.Duration
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewSettlementService(
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
	gateway payment.Gateway,
	notify NotificationService,
	staleAfter time.Duration,
) SettlementService {
	return &settlementService{
		purchaseRepo:   purchaseRepo,
		userRepo:       userRepo,
		gateway:        gateway,
		notify:         notify,
		staleAfter:     staleAfter,
		gatewayTimeout: 30 * time.Second,
		now:            time.Now,
	}
}

// transferKey is the gateway idempotency key for a purchase. One purchase,
// one key, forever: any retry or racing run reuses it.
func transferKey(purchaseID uint64) string {
	return fmt.Sprintf("purchase-%d", purchaseID)
}

func (s *settlementService) ReleaseDue(ctx context.Context) (*Result, error) {
	due, err := s.purchaseRepo.ListDueForRelease(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("query due purchases: %w", err)
	}

	res := &Result{}
	for i := range due {
		p := &due[i]
		res.Processed++

		if p.StripeTransferID != nil {
			// Another run finished this one after our query; nothing to do.
			log.Printf("settlement: purchase %d already settled, skipping", p.ID)
			continue
		}
		released, err := s.releaseOne(ctx, p)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("purchase %d: %v", p.ID, err))
			log.Printf("settlement: purchase %d failed: %v", p.ID, err)
			continue
		}
		// A lost commit race stays at processed only; the winning run already
		// counted the release.
		if released {
			res.Released++
		}
	}
	return res, nil
}

// releaseOne settles a single purchase. It reports false with a nil error when
// the conditional commit lost to a concurrent run: that purchase was already
// released and must not be counted again.
func (s *settlementService) releaseOne(ctx context.Context, p *model.Purchase) (bool, error) {
	seller, err := s.userRepo.FindByUID(ctx, p.SellerUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("seller %s not found", p.SellerUID)
		}
		return false, err
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return false, fmt.Errorf("seller %s has no payout account", p.SellerUID)
	}
	if p.PaymentRef == nil || *p.PaymentRef == "" {
		return false, errors.New("no payment reference")
	}
	// Re-validate the money triple instead of trusting the value written at
	// checkout. A violation here is a bug, not an operational condition.
	if err := p.CheckFeeSplit(); err != nil {
		log.Printf("settlement: INVARIANT VIOLATION: %v", err)
		return false, err
	}

	tctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	transferID, err := s.gateway.Transfer(tctx, transferKey(p.ID), p.SellerAmountCents, *seller.StripeAccountID)
	cancel()
	if err != nil {
		// Includes ambiguous timeouts: retry next run, the idempotency key
		// guarantees at most one real transfer.
		return false, fmt.Errorf("transfer: %w", err)
	}

	n, err := s.purchaseRepo.MarkReleased(ctx, p.ID, p.SellerUID, transferID, s.now())
	if err != nil {
		return false, fmt.Errorf("commit release: %w", err)
	}
	if n == 0 {
		// A concurrent run committed first. Our transfer result is a no-op
		// duplicate; the gateway key made sure no second payout happened.
		log.Printf("settlement: purchase %d released by a concurrent run, discarding duplicate transfer %s", p.ID, transferID)
		return false, nil
	}

	pid := p.ID
	s.notify.Notify(ctx, p.SellerUID, "escrow_released", "Funds released",
		fmt.Sprintf("Escrow for purchase #%d was released: $%d.%02d is on its way to your payout account.",
			p.ID, p.SellerAmountCents/100, p.SellerAmountCents%100),
		&p.ListingID, &pid)
	s.notify.Email(ctx, seller.Email, "Your funds were released",
		fmt.Sprintf("<p>Escrow for purchase #%d was released. Transfer: %s.</p>", p.ID, transferID))
	return true, nil
}

func (s *settlementService) ReapStale(ctx context.Context) (*ReapResult, error) {
	cutoff := s.now().Add(-s.staleAfter)
	ids, err := s.purchaseRepo.DeleteStalePending(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reap stale purchases: %w", err)
	}
	return &ReapResult{DeletedCount: len(ids), DeletedIDs: ids}, nil
}

func (s *settlementService) ResolveRelease(ctx context.Context, purchaseID uint64, resolution string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !model.CanTransition(p.EscrowStatus, model.EscrowStatusReleased) {
		return nil, rejectf("not_releasable", "cannot release escrow from status %q", p.EscrowStatus)
	}
	seller, err := s.userRepo.FindByUID(ctx, p.SellerUID)
	if err != nil {
		return nil, err
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return nil, rejectf("no_payout_account", "seller has no payout account configured")
	}
	if err := p.CheckFeeSplit(); err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	transferID, err := s.gateway.Transfer(tctx, transferKey(p.ID), p.SellerAmountCents, *seller.StripeAccountID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	n, err := s.purchaseRepo.MarkResolvedReleased(ctx, p.ID, p.SellerUID, transferID, resolution, s.now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrConflict
	}
	return s.purchaseRepo.FindByID(ctx, p.ID)
}

func (s *settlementService) ResolveRefund(ctx context.Context, purchaseID uint64, resolution string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !model.CanTransition(p.EscrowStatus, model.EscrowStatusRefunded) {
		return nil, rejectf("not_refundable", "cannot refund escrow from status %q", p.EscrowStatus)
	}
	n, err := s.purchaseRepo.MarkRefunded(ctx, p.ID, resolution, s.now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrConflict
	}
	if p.BuyerUID != nil {
		pid := p.ID
		s.notify.Notify(ctx, *p.BuyerUID, "purchase_refunded", "Your purchase was refunded",
			fmt.Sprintf("Purchase #%d was resolved in your favor and refunded.", p.ID),
			&p.ListingID, &pid)
	}
	return s.purchaseRepo.FindByID(ctx, p.ID)
}
