package repository

import (
	"context"

	"github.com/driftlab/market-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (*model.User, error)
	// Upsert provisions a row for a uid on first contact. Profile fields come
	// from the identity provider; tier and counters keep their stored values.
	Upsert(ctx context.Context, u *model.User) error
	SetDB(db *gorm.DB)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Upsert(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name"}),
	}).Create(u).Error
}

func (r *userRepository) SetDB(db *gorm.DB) {
	r.db = db
}
