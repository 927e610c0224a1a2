package model

import (
	"time"

	"gorm.io/gorm"
)

type DeliveryMethod string

const (
	DeliveryInstantDownload  DeliveryMethod = "instant_download"
	DeliveryRepositoryAccess DeliveryMethod = "repository_access"
	DeliveryManualTransfer   DeliveryMethod = "manual_transfer"
	DeliveryDomainTransfer   DeliveryMethod = "domain_transfer"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryInstantDownload, DeliveryRepositoryAccess, DeliveryManualTransfer, DeliveryDomainTransfer:
		return true
	}
	return false
}

type ListingStatus string

const (
	ListingStatusDraft   ListingStatus = "draft"
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusRemoved ListingStatus = "removed"
)

type Listing struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	SellerUID      string         `gorm:"column:seller_uid;size:128;index;not null"`
	Title          string         `gorm:"size:120;not null"`
	Description    string         `gorm:"type:text;not null"`
	PriceCents     int64          `gorm:"column:price_cents;not null"`
	DeliveryMethod DeliveryMethod `gorm:"column:delivery_method;size:32;not null"`
	Status         ListingStatus  `gorm:"column:status;size:16;not null;default:'draft'"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (Listing) TableName() string {
	return "listings"
}
