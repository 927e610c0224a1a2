package repository

import (
	"context"

	"github.com/driftlab/market-backend/internal/model"
	"gorm.io/gorm"
)

type ListingRepository interface {
	Create(ctx context.Context, l *model.Listing) error
	FindByID(ctx context.Context, id uint64) (*model.Listing, error)
	ListActive(ctx context.Context, limit int) ([]model.Listing, error)
	ListBySeller(ctx context.Context, sellerUID string) ([]model.Listing, error)
	// CountActiveBySeller is recomputed on every limiter check; soft-deleted
	// rows are excluded by gorm's default scope.
	CountActiveBySeller(ctx context.Context, sellerUID string) (int64, error)
	UpdateStatus(ctx context.Context, id uint64, sellerUID string, status model.ListingStatus) (int64, error)
	SetDB(db *gorm.DB)
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, l *model.Listing) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *listingRepository) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	var l model.Listing
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) ListActive(ctx context.Context, limit int) ([]model.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []model.Listing
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.ListingStatusActive).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) ListBySeller(ctx context.Context, sellerUID string) ([]model.Listing, error) {
	var list []model.Listing
	if err := r.db.WithContext(ctx).
		Where("seller_uid = ?", sellerUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) CountActiveBySeller(ctx context.Context, sellerUID string) (int64, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("seller_uid = ? AND status = ?", sellerUID, model.ListingStatusActive).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *listingRepository) UpdateStatus(ctx context.Context, id uint64, sellerUID string, status model.ListingStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND seller_uid = ?", id, sellerUID).
		Update("status", status)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *listingRepository) SetDB(db *gorm.DB) {
	r.db = db
}
