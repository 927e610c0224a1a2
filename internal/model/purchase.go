package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type DeliveryStatus string

const (
	DeliveryStatusPending       DeliveryStatus = "pending"
	DeliveryStatusDelivered     DeliveryStatus = "delivered"
	DeliveryStatusConfirmed     DeliveryStatus = "confirmed"
	DeliveryStatusAutoCompleted DeliveryStatus = "auto_completed"
)

type EscrowStatus string

const (
	EscrowStatusHolding  EscrowStatus = "holding"
	EscrowStatusDisputed EscrowStatus = "disputed"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

type DisputeReason string

const (
	DisputeReasonFilesEmpty         DisputeReason = "files_empty"
	DisputeReasonNotAsDescribed     DisputeReason = "not_as_described"
	DisputeReasonSellerUnresponsive DisputeReason = "seller_unresponsive"
	DisputeReasonSuspectedStolen    DisputeReason = "suspected_stolen"
	DisputeReasonMalware            DisputeReason = "malware"
	DisputeReasonOther              DisputeReason = "other"
)

func (r DisputeReason) Valid() bool {
	switch r {
	case DisputeReasonFilesEmpty, DisputeReasonNotAsDescribed, DisputeReasonSellerUnresponsive,
		DisputeReasonSuspectedStolen, DisputeReasonMalware, DisputeReasonOther:
		return true
	}
	return false
}

// Purchase is the single shared mutable record of the escrow flow. Every
// escrow_status transition goes through a conditional UPDATE in the repository,
// never a blind save.
type Purchase struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement"`
	ListingID   uint64  `gorm:"column:listing_id;index;not null"`
	SellerUID   string  `gorm:"column:seller_uid;size:128;index;not null"`
	BuyerUID    *string `gorm:"column:buyer_uid;size:128;index"`
	GuestEmail  *string `gorm:"column:guest_email;size:255;index"`
	CheckoutRef string  `gorm:"column:checkout_ref;size:64;uniqueIndex;not null"`

	// DeliveryMethod is copied from the listing at checkout so capture can
	// compute the escrow window without a join.
	DeliveryMethod DeliveryMethod `gorm:"column:delivery_method;size:32;not null"`

	AmountPaidCents   int64 `gorm:"column:amount_paid_cents;not null"`
	PlatformFeeCents  int64 `gorm:"column:platform_fee_cents;not null"`
	SellerAmountCents int64 `gorm:"column:seller_amount_cents;not null"`

	PaymentStatus  PaymentStatus  `gorm:"column:payment_status;size:16;index;not null"`
	DeliveryStatus DeliveryStatus `gorm:"column:delivery_status;size:16;not null"`
	EscrowStatus   EscrowStatus   `gorm:"column:escrow_status;size:16;index"`

	PaymentRef       *string    `gorm:"column:payment_ref;size:128"`
	StripeTransferID *string    `gorm:"column:stripe_transfer_id;size:128"`
	EscrowExpiresAt  *time.Time `gorm:"column:escrow_expires_at;index"`
	EscrowReleasedAt *time.Time `gorm:"column:escrow_released_at"`
	DisputedAt       *time.Time `gorm:"column:disputed_at"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at"`

	DisputeReason *DisputeReason `gorm:"column:dispute_reason;size:32"`
	DisputeNotes  string         `gorm:"column:dispute_notes;type:text"`
	Resolution    string         `gorm:"column:resolution;type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// BuyerKey identifies the buyer for spend aggregation: the account uid, or the
// lowercased guest email for guest checkouts.
func (p *Purchase) BuyerKey() string {
	if p.BuyerUID != nil {
		return *p.BuyerUID
	}
	if p.GuestEmail != nil {
		return *p.GuestEmail
	}
	return ""
}
