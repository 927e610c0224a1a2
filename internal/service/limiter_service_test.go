package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftlab/market-backend/internal/model"
)

func completedToday(buyerUID string, amountCents int64, now time.Time) *model.Purchase {
	uid := buyerUID
	return &model.Purchase{
		BuyerUID:        &uid,
		SellerUID:       "someone",
		AmountPaidCents: amountCents,
		PaymentStatus:   model.PaymentStatusCompleted,
		CreatedAt:       now,
	}
}

func TestBuyerSpendLimit(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		tier       model.BuyerTier
		spentToday int64
		amount     int64
		wantReject bool
	}{
		{"new buyer under cap", model.BuyerTierNew, 24_000, 1_000, false},
		{"new buyer at exactly cap", model.BuyerTierNew, 24_000, 1_100, true},
		{"new buyer with 240 spent allows 10", model.BuyerTierNew, 24_000, 1_000, false},
		{"new buyer with 240 spent rejects 11", model.BuyerTierNew, 24_000, 1_100, true},
		{"verified buyer higher cap", model.BuyerTierVerified, 24_000, 1_100, false},
		{"verified buyer over cap", model.BuyerTierVerified, 49_500, 600, true},
		{"trusted buyer cap", model.BuyerTierTrusted, 99_000, 1_000, false},
		{"trusted buyer over cap", model.BuyerTierTrusted, 99_901, 100, true},
		{"spend exactly to the cap is allowed", model.BuyerTierNew, 20_000, 5_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUserRepo(&model.User{UID: "b", BuyerTier: tt.tier})
			repo := newFakePurchaseRepo(users)
			if tt.spentToday > 0 {
				repo.add(completedToday("b", tt.spentToday, now))
			}
			svc := &limiterService{purchaseRepo: repo, listingRepo: newFakeListingRepo(), now: fixedNow(now)}

			buyer, _ := users.FindByUID(context.Background(), "b")
			err := svc.CheckBuyerSpend(context.Background(), buyer, tt.amount)
			var rej *Rejection
			if tt.wantReject {
				if !errors.As(err, &rej) {
					t.Fatalf("want rejection, got %v", err)
				}
				if rej.Code != "spend_limit_exceeded" {
					t.Fatalf("code=%s", rej.Code)
				}
			} else if err != nil {
				t.Fatalf("unexpected: %v", err)
			}
		})
	}
}

func TestSpendResetsAtLocalMidnight(t *testing.T) {
	now := time.Now()
	users := newFakeUserRepo(&model.User{UID: "b", BuyerTier: model.BuyerTierNew})
	repo := newFakePurchaseRepo(users)
	// Spent yesterday; does not count toward today.
	repo.add(completedToday("b", 24_999, now.Add(-26*time.Hour)))
	svc := &limiterService{purchaseRepo: repo, listingRepo: newFakeListingRepo(), now: fixedNow(now)}

	buyer, _ := users.FindByUID(context.Background(), "b")
	if err := svc.CheckBuyerSpend(context.Background(), buyer, 25_000); err != nil {
		t.Fatalf("yesterday's spend counted: %v", err)
	}
}

func TestPendingPurchasesDoNotCountAsSpend(t *testing.T) {
	now := time.Now()
	users := newFakeUserRepo(&model.User{UID: "b", BuyerTier: model.BuyerTierNew})
	repo := newFakePurchaseRepo(users)
	p := completedToday("b", 24_999, now)
	p.PaymentStatus = model.PaymentStatusPending
	repo.add(p)
	svc := &limiterService{purchaseRepo: repo, listingRepo: newFakeListingRepo(), now: fixedNow(now)}

	buyer, _ := users.FindByUID(context.Background(), "b")
	if err := svc.CheckBuyerSpend(context.Background(), buyer, 25_000); err != nil {
		t.Fatalf("pending purchase counted as spend: %v", err)
	}
}

func TestGuestSpendCap(t *testing.T) {
	now := time.Now()
	users := newFakeUserRepo()
	repo := newFakePurchaseRepo(users)
	email := "guest@example.com"
	repo.add(&model.Purchase{
		GuestEmail:      &email,
		SellerUID:       "someone",
		AmountPaidCents: 4_500,
		PaymentStatus:   model.PaymentStatusCompleted,
		CreatedAt:       now,
	})
	svc := &limiterService{purchaseRepo: repo, listingRepo: newFakeListingRepo(), now: fixedNow(now)}

	if err := svc.CheckGuestSpend(context.Background(), "guest@example.com", 500); err != nil {
		t.Fatalf("within cap rejected: %v", err)
	}
	err := svc.CheckGuestSpend(context.Background(), "GUEST@Example.com ", 600)
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("over cap allowed (email normalization?): %v", err)
	}

	// A fresh guest is capped at $50 regardless of anything else.
	if err := svc.CheckGuestSpend(context.Background(), "new@example.com", 5_100); err == nil {
		t.Fatal("single $51 guest purchase allowed")
	}
}

func TestSellerListingLimit(t *testing.T) {
	tests := []struct {
		name       string
		totalSales int64
		active     int
		wantReject bool
	}{
		{"new seller first listing", 0, 0, false},
		{"new seller second listing", 0, 1, true},
		{"verified seller under cap", 1, 2, false},
		{"verified seller at cap", 2, 3, true},
		{"trusted at three sales gets the bigger cap", 3, 3, false},
		{"trusted seller at cap", 5, 10, true},
		{"pro seller unlimited", 10, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUserRepo(&model.User{UID: "s", TotalSales: tt.totalSales})
			listings := newFakeListingRepo()
			for i := 0; i < tt.active; i++ {
				_ = listings.Create(context.Background(), &model.Listing{
					SellerUID: "s", Title: "x", Status: model.ListingStatusActive,
				})
			}
			repo := newFakePurchaseRepo(users)
			svc := &limiterService{purchaseRepo: repo, listingRepo: listings, now: time.Now}

			seller, _ := users.FindByUID(context.Background(), "s")
			err := svc.CheckSellerListings(context.Background(), seller)
			var rej *Rejection
			if tt.wantReject {
				if !errors.As(err, &rej) {
					t.Fatalf("want rejection, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected: %v", err)
			}
		})
	}
}

func TestRemovedListingsDoNotCountTowardCap(t *testing.T) {
	users := newFakeUserRepo(&model.User{UID: "s", TotalSales: 0})
	listings := newFakeListingRepo()
	_ = listings.Create(context.Background(), &model.Listing{SellerUID: "s", Title: "x", Status: model.ListingStatusRemoved})
	_ = listings.Create(context.Background(), &model.Listing{SellerUID: "s", Title: "y", Status: model.ListingStatusSold})
	svc := &limiterService{purchaseRepo: newFakePurchaseRepo(users), listingRepo: listings, now: time.Now}

	seller, _ := users.FindByUID(context.Background(), "s")
	if err := svc.CheckSellerListings(context.Background(), seller); err != nil {
		t.Fatalf("inactive listings counted: %v", err)
	}
}
