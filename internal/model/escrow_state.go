package model

import (
	"fmt"
	"time"
)

// EscrowState is the explicit form of a purchase's escrow position. The row
// stores an enum plus nullable timestamps; this type pins each status to the
// fields that must accompany it, so a contradictory row (released with no
// transfer id, disputed with no reason) surfaces as an error instead of being
// silently carried along.
type EscrowState interface {
	Status() EscrowStatus
	escrowState()
}

type Holding struct {
	ExpiresAt time.Time
}

type Disputed struct {
	Reason     DisputeReason
	Notes      string
	DisputedAt time.Time
}

type Released struct {
	TransferID string
	ReleasedAt time.Time
}

type Refunded struct {
	ResolvedAt time.Time
}

func (Holding) Status() EscrowStatus  { return EscrowStatusHolding }
func (Disputed) Status() EscrowStatus { return EscrowStatusDisputed }
func (Released) Status() EscrowStatus { return EscrowStatusReleased }
func (Refunded) Status() EscrowStatus { return EscrowStatusRefunded }

func (Holding) escrowState()  {}
func (Disputed) escrowState() {}
func (Released) escrowState() {}
func (Refunded) escrowState() {}

// ErrEscrowInvariant wraps a row whose columns contradict its escrow status.
type ErrEscrowInvariant struct {
	PurchaseID uint64
	Detail     string
}

func (e *ErrEscrowInvariant) Error() string {
	return fmt.Sprintf("purchase %d: escrow invariant violated: %s", e.PurchaseID, e.Detail)
}

// EscrowState derives the typed state from the stored columns, validating that
// every field the status requires is present. Returns (nil, nil) before payment
// capture, when the purchase has no escrow position yet.
func (p *Purchase) EscrowState() (EscrowState, error) {
	switch p.EscrowStatus {
	case "":
		return nil, nil
	case EscrowStatusHolding:
		if p.EscrowExpiresAt == nil {
			return nil, &ErrEscrowInvariant{p.ID, "holding without escrow_expires_at"}
		}
		return Holding{ExpiresAt: *p.EscrowExpiresAt}, nil
	case EscrowStatusDisputed:
		if p.DisputeReason == nil || p.DisputedAt == nil {
			return nil, &ErrEscrowInvariant{p.ID, "disputed without reason or disputed_at"}
		}
		return Disputed{Reason: *p.DisputeReason, Notes: p.DisputeNotes, DisputedAt: *p.DisputedAt}, nil
	case EscrowStatusReleased:
		// Free claims release without a transfer; anything with a seller
		// payout must carry the transfer id that moved it.
		var transferID string
		if p.StripeTransferID != nil {
			transferID = *p.StripeTransferID
		}
		if transferID == "" && p.SellerAmountCents > 0 {
			return nil, &ErrEscrowInvariant{p.ID, "released without stripe_transfer_id"}
		}
		if p.EscrowReleasedAt == nil {
			return nil, &ErrEscrowInvariant{p.ID, "released without escrow_released_at"}
		}
		return Released{TransferID: transferID, ReleasedAt: *p.EscrowReleasedAt}, nil
	case EscrowStatusRefunded:
		if p.ResolvedAt == nil {
			return nil, &ErrEscrowInvariant{p.ID, "refunded without resolved_at"}
		}
		return Refunded{ResolvedAt: *p.ResolvedAt}, nil
	default:
		return nil, &ErrEscrowInvariant{p.ID, fmt.Sprintf("unknown escrow status %q", p.EscrowStatus)}
	}
}

// CanTransition reports whether escrow may move from one status to another.
// Holding may become disputed, released or refunded; disputed may become
// released or refunded. Nothing re-enters holding and terminal states are final.
func CanTransition(from, to EscrowStatus) bool {
	switch from {
	case EscrowStatusHolding:
		return to == EscrowStatusDisputed || to == EscrowStatusReleased || to == EscrowStatusRefunded
	case EscrowStatusDisputed:
		return to == EscrowStatusReleased || to == EscrowStatusRefunded
	}
	return false
}

// CheckFeeSplit re-validates the money triple. Settlement calls this before
// committing a release rather than trusting the value written at checkout.
func (p *Purchase) CheckFeeSplit() error {
	if p.PlatformFeeCents+p.SellerAmountCents != p.AmountPaidCents {
		return &ErrEscrowInvariant{p.ID, fmt.Sprintf(
			"fee split %d+%d != %d", p.PlatformFeeCents, p.SellerAmountCents, p.AmountPaidCents)}
	}
	if p.SellerAmountCents < 0 {
		return &ErrEscrowInvariant{p.ID, "negative seller amount"}
	}
	return nil
}
