// Package fee computes the platform's cut of a sale and the escrow window a
// purchase is held for. All money is int64 cents.
package fee

import (
	"fmt"
	"time"

	"github.com/driftlab/market-backend/internal/model"
)

// MinimumFeeCents is the floor applied after the percentage schedule.
const MinimumFeeCents = 50

// band rates apply to the gross sale amount, lower bound inclusive,
// upper bound exclusive.
var bands = []struct {
	uptoCents int64 // exclusive; 0 means no upper bound
	percent   int64
}{
	{2_500, 2},
	{10_000, 3},
	{50_000, 4},
	{200_000, 5},
	{0, 6},
}

// Calculate returns the platform fee for a gross amount. The percentage result
// is floored to the cent, then raised to MinimumFeeCents. A free claim
// (amount 0) carries no fee.
func Calculate(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	var pct int64
	for _, b := range bands {
		if b.uptoCents == 0 || amountCents < b.uptoCents {
			pct = b.percent
			break
		}
	}
	f := amountCents * pct / 100
	if f < MinimumFeeCents {
		f = MinimumFeeCents
	}
	return f
}

// Split returns (fee, sellerAmount) with fee+sellerAmount == amountCents.
// A negative seller share means the schedule itself is broken; that is a
// configuration error, not a runtime condition, so it panics.
func Split(amountCents int64) (feeCents, sellerCents int64) {
	feeCents = Calculate(amountCents)
	sellerCents = amountCents - feeCents
	if sellerCents < 0 {
		panic(fmt.Sprintf("fee schedule produced negative seller amount for %d cents", amountCents))
	}
	return feeCents, sellerCents
}

// Escrow windows by delivery method. Instant downloads from a verified seller
// release immediately; a new seller's downloads and repository access hold for
// 72 hours, manual transfers for 7 days, domain transfers for 14 days.
const (
	windowShort  = 72 * time.Hour
	windowManual = 7 * 24 * time.Hour
	windowDomain = 14 * 24 * time.Hour
)

func Window(method model.DeliveryMethod, sellerVerified bool) time.Duration {
	switch method {
	case model.DeliveryInstantDownload:
		if sellerVerified {
			return 0
		}
		return windowShort
	case model.DeliveryRepositoryAccess:
		return windowShort
	case model.DeliveryManualTransfer:
		return windowManual
	case model.DeliveryDomainTransfer:
		return windowDomain
	}
	// Unknown methods get the longest hold.
	return windowDomain
}
