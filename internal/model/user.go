package model

import "time"

type BuyerTier string

const (
	BuyerTierNew      BuyerTier = "new"
	BuyerTierVerified BuyerTier = "verified"
	BuyerTierTrusted  BuyerTier = "trusted"
)

type SellerTier string

const (
	SellerTierNew      SellerTier = "new"
	SellerTierVerified SellerTier = "verified"
	SellerTierTrusted  SellerTier = "trusted"
	SellerTierPro      SellerTier = "pro"
)

type User struct {
	UID             string    `gorm:"column:uid;primaryKey;size:128"`
	Email           string    `gorm:"column:email;size:255;index;not null"`
	DisplayName     string    `gorm:"column:display_name;size:120"`
	BuyerTier       BuyerTier `gorm:"column:buyer_tier;size:16;not null;default:'new'"`
	TotalSales      int64     `gorm:"column:total_sales;not null;default:0"`
	TotalDisputes   int64     `gorm:"column:total_disputes;not null;default:0"`
	DisputeRate     float64   `gorm:"column:dispute_rate;not null;default:0"`
	StripeAccountID *string   `gorm:"column:stripe_account_id;size:64"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// SellerTierOf derives the seller tier from lifetime completed sales.
// The tier is never stored; it is recomputed from total_sales on every check.
func SellerTierOf(totalSales int64) SellerTier {
	switch {
	case totalSales >= 10:
		return SellerTierPro
	case totalSales >= 3:
		return SellerTierTrusted
	case totalSales >= 1:
		return SellerTierVerified
	default:
		return SellerTierNew
	}
}

// SellerVerified reports whether the seller has at least one completed sale,
// which shortens the escrow window for instant downloads.
func SellerVerified(totalSales int64) bool {
	return SellerTierOf(totalSales) != SellerTierNew
}
