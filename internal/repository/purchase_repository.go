package repository

import (
	"context"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"gorm.io/gorm"
)

type PurchaseRepository interface {
	Create(ctx context.Context, p *model.Purchase) error
	FindByID(ctx context.Context, id uint64) (*model.Purchase, error)
	FindByCheckoutRef(ctx context.Context, ref string) (*model.Purchase, error)
	ListByBuyer(ctx context.Context, buyerUID string) ([]model.Purchase, error)
	ListBySeller(ctx context.Context, sellerUID string) ([]model.Purchase, error)

	// ListDueForRelease returns purchases still holding escrow whose window has
	// elapsed at now. Disputed purchases are excluded by construction: they are
	// never in holding.
	ListDueForRelease(ctx context.Context, now time.Time) ([]model.Purchase, error)

	// MarkCaptured flips a pending purchase to completed/holding and stamps the
	// escrow window. Conditional on payment_status, so a retried webhook lands
	// on zero rows instead of re-capturing.
	MarkCaptured(ctx context.Context, id uint64, paymentRef string, delivery model.DeliveryStatus, expiresAt time.Time) (int64, error)

	// MarkDisputed freezes escrow and, in the same transaction, increments the
	// seller's dispute counter and recomputes the dispute rate. Conditional on
	// the purchase still holding with an unexpired window; zero rows means a
	// concurrent transition won.
	MarkDisputed(ctx context.Context, id uint64, sellerUID string, reason model.DisputeReason, notes string, now time.Time) (int64, error)

	// MarkReleased commits a settlement. The WHERE clause is the safety
	// mechanism against double payout: it only matches while the purchase is
	// still holding and no transfer has been recorded.
	MarkReleased(ctx context.Context, id uint64, sellerUID, transferID string, now time.Time) (int64, error)

	// MarkResolvedReleased is the staff path: like MarkReleased but also valid
	// from disputed, recording the resolution text.
	MarkResolvedReleased(ctx context.Context, id uint64, sellerUID, transferID, resolution string, now time.Time) (int64, error)

	// MarkRefunded resolves a holding or disputed purchase in the buyer's
	// favor. Same conditional-update discipline as release.
	MarkRefunded(ctx context.Context, id uint64, resolution string, now time.Time) (int64, error)

	SumPaidByBuyerSince(ctx context.Context, buyerUID string, since time.Time) (int64, error)
	SumPaidByGuestSince(ctx context.Context, email string, since time.Time) (int64, error)

	// DeleteStalePending hard-deletes never-captured purchases created before
	// the cutoff and returns their ids.
	DeleteStalePending(ctx context.Context, before time.Time) ([]uint64, error)

	SetDB(db *gorm.DB)
}

type purchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) Create(ctx context.Context, p *model.Purchase) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *purchaseRepository) FindByID(ctx context.Context, id uint64) (*model.Purchase, error) {
	var p model.Purchase
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) FindByCheckoutRef(ctx context.Context, ref string) (*model.Purchase, error) {
	var p model.Purchase
	if err := r.db.WithContext(ctx).Where("checkout_ref = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) ListByBuyer(ctx context.Context, buyerUID string) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("buyer_uid = ?", buyerUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseRepository) ListBySeller(ctx context.Context, sellerUID string) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("seller_uid = ?", sellerUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseRepository) ListDueForRelease(ctx context.Context, now time.Time) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("escrow_status = ? AND escrow_expires_at <= ?", model.EscrowStatusHolding, now).
		Order("escrow_expires_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseRepository) MarkCaptured(ctx context.Context, id uint64, paymentRef string, delivery model.DeliveryStatus, expiresAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ? AND payment_status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":    model.PaymentStatusCompleted,
			"escrow_status":     model.EscrowStatusHolding,
			"delivery_status":   delivery,
			"payment_ref":       paymentRef,
			"escrow_expires_at": expiresAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// sellerDisputeRateExpr recomputes dispute_rate from the stored counters,
// guarding the zero-sales division.
const sellerDisputeRateExpr = "CASE WHEN total_sales = 0 THEN 0 ELSE total_disputes / total_sales END"

func (r *purchaseRepository) MarkDisputed(ctx context.Context, id uint64, sellerUID string, reason model.DisputeReason, notes string, now time.Time) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Purchase{}).
			Where("id = ? AND escrow_status = ? AND escrow_expires_at > ?", id, model.EscrowStatusHolding, now).
			Updates(map[string]interface{}{
				"escrow_status":  model.EscrowStatusDisputed,
				"dispute_reason": reason,
				"dispute_notes":  notes,
				"disputed_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Model(&model.User{}).
			Where("uid = ?", sellerUID).
			Updates(map[string]interface{}{
				"total_disputes": gorm.Expr("total_disputes + 1"),
				"dispute_rate":   gorm.Expr(sellerDisputeRateExpr),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *purchaseRepository) MarkReleased(ctx context.Context, id uint64, sellerUID, transferID string, now time.Time) (int64, error) {
	return r.release(ctx, id, sellerUID, transferID, "", now, []model.EscrowStatus{model.EscrowStatusHolding})
}

func (r *purchaseRepository) MarkResolvedReleased(ctx context.Context, id uint64, sellerUID, transferID, resolution string, now time.Time) (int64, error) {
	return r.release(ctx, id, sellerUID, transferID, resolution, now, []model.EscrowStatus{model.EscrowStatusHolding, model.EscrowStatusDisputed})
}

func (r *purchaseRepository) release(ctx context.Context, id uint64, sellerUID, transferID, resolution string, now time.Time, from []model.EscrowStatus) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"escrow_status":      model.EscrowStatusReleased,
			"stripe_transfer_id": transferID,
			"escrow_released_at": now,
		}
		if resolution != "" {
			updates["resolution"] = resolution
			updates["resolved_at"] = now
		}
		res := tx.Model(&model.Purchase{}).
			Where("id = ? AND escrow_status IN ? AND stripe_transfer_id IS NULL", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Model(&model.User{}).
			Where("uid = ?", sellerUID).
			Updates(map[string]interface{}{
				"total_sales":  gorm.Expr("total_sales + 1"),
				"dispute_rate": gorm.Expr(sellerDisputeRateExpr),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *purchaseRepository) MarkRefunded(ctx context.Context, id uint64, resolution string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ? AND escrow_status IN ? AND stripe_transfer_id IS NULL",
			id, []model.EscrowStatus{model.EscrowStatusHolding, model.EscrowStatusDisputed}).
		Updates(map[string]interface{}{
			"escrow_status":  model.EscrowStatusRefunded,
			"payment_status": model.PaymentStatusRefunded,
			"resolution":     resolution,
			"resolved_at":    now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *purchaseRepository) SumPaidByBuyerSince(ctx context.Context, buyerUID string, since time.Time) (int64, error) {
	return r.sumPaidSince(ctx, "buyer_uid = ?", buyerUID, since)
}

func (r *purchaseRepository) SumPaidByGuestSince(ctx context.Context, email string, since time.Time) (int64, error) {
	return r.sumPaidSince(ctx, "guest_email = ?", email, since)
}

func (r *purchaseRepository) sumPaidSince(ctx context.Context, cond, key string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where(cond, key).
		Where("payment_status = ? AND created_at >= ?", model.PaymentStatusCompleted, since).
		Select("COALESCE(SUM(amount_paid_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *purchaseRepository) DeleteStalePending(ctx context.Context, before time.Time) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Purchase{}).
			Where("payment_status = ? AND created_at < ?", model.PaymentStatusPending, before).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Delete(&model.Purchase{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *purchaseRepository) SetDB(db *gorm.DB) {
	r.db = db
}
