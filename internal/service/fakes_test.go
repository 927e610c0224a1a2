package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftlab/market-backend/internal/model"
	"gorm.io/gorm"
)

// In-memory fakes mirroring the repositories' conditional-update semantics,
// including the zero-rows outcome when a guard no longer matches.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	m := make(map[string]*model.User)
	for _, u := range users {
		m[u.UID] = u
	}
	return &fakeUserRepo{users: m}
}

func (r *fakeUserRepo) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Upsert(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[u.UID]; ok {
		cur.Email = u.Email
		cur.DisplayName = u.DisplayName
		return nil
	}
	cp := *u
	r.users[u.UID] = &cp
	return nil
}

func (r *fakeUserRepo) SetDB(db *gorm.DB) {}

func (r *fakeUserRepo) recomputeDisputeRate(u *model.User) {
	if u.TotalSales == 0 {
		u.DisputeRate = 0
		return
	}
	u.DisputeRate = float64(u.TotalDisputes) / float64(u.TotalSales)
}

type fakePurchaseRepo struct {
	mu        sync.Mutex
	purchases map[uint64]*model.Purchase
	users     *fakeUserRepo
	nextID    uint64
	listErr   error
}

func newFakePurchaseRepo(users *fakeUserRepo) *fakePurchaseRepo {
	return &fakePurchaseRepo{purchases: make(map[uint64]*model.Purchase), users: users}
}

func (r *fakePurchaseRepo) add(p *model.Purchase) *model.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	r.purchases[p.ID] = p
	return p
}

func (r *fakePurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	// Mirror gorm's autoCreateTime on the Purchase model.
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.add(p)
	return nil
}

func (r *fakePurchaseRepo) FindByID(ctx context.Context, id uint64) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePurchaseRepo) FindByCheckoutRef(ctx context.Context, ref string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.CheckoutRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePurchaseRepo) ListByBuyer(ctx context.Context, buyerUID string) ([]model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Purchase
	for _, p := range r.purchases {
		if p.BuyerUID != nil && *p.BuyerUID == buyerUID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) ListBySeller(ctx context.Context, sellerUID string) ([]model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Purchase
	for _, p := range r.purchases {
		if p.SellerUID == sellerUID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) ListDueForRelease(ctx context.Context, now time.Time) ([]model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Purchase
	for _, p := range r.purchases {
		if p.EscrowStatus == model.EscrowStatusHolding && p.EscrowExpiresAt != nil && !p.EscrowExpiresAt.After(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) MarkCaptured(ctx context.Context, id uint64, paymentRef string, delivery model.DeliveryStatus, expiresAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.PaymentStatus != model.PaymentStatusPending {
		return 0, nil
	}
	p.PaymentStatus = model.PaymentStatusCompleted
	p.EscrowStatus = model.EscrowStatusHolding
	p.DeliveryStatus = delivery
	p.PaymentRef = &paymentRef
	exp := expiresAt
	p.EscrowExpiresAt = &exp
	return 1, nil
}

func (r *fakePurchaseRepo) MarkDisputed(ctx context.Context, id uint64, sellerUID string, reason model.DisputeReason, notes string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.EscrowStatus != model.EscrowStatusHolding || p.EscrowExpiresAt == nil || !p.EscrowExpiresAt.After(now) {
		return 0, nil
	}
	p.EscrowStatus = model.EscrowStatusDisputed
	rsn := reason
	p.DisputeReason = &rsn
	p.DisputeNotes = notes
	at := now
	p.DisputedAt = &at

	r.users.mu.Lock()
	if u, ok := r.users.users[sellerUID]; ok {
		u.TotalDisputes++
		r.users.recomputeDisputeRate(u)
	}
	r.users.mu.Unlock()
	return 1, nil
}

func (r *fakePurchaseRepo) MarkReleased(ctx context.Context, id uint64, sellerUID, transferID string, now time.Time) (int64, error) {
	return r.release(id, sellerUID, transferID, "", now, false)
}

func (r *fakePurchaseRepo) MarkResolvedReleased(ctx context.Context, id uint64, sellerUID, transferID, resolution string, now time.Time) (int64, error) {
	return r.release(id, sellerUID, transferID, resolution, now, true)
}

func (r *fakePurchaseRepo) release(id uint64, sellerUID, transferID, resolution string, now time.Time, fromDisputed bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.StripeTransferID != nil {
		return 0, nil
	}
	if p.EscrowStatus != model.EscrowStatusHolding && !(fromDisputed && p.EscrowStatus == model.EscrowStatusDisputed) {
		return 0, nil
	}
	p.EscrowStatus = model.EscrowStatusReleased
	tid := transferID
	p.StripeTransferID = &tid
	at := now
	p.EscrowReleasedAt = &at
	if resolution != "" {
		p.Resolution = resolution
		p.ResolvedAt = &at
	}

	r.users.mu.Lock()
	if u, ok := r.users.users[sellerUID]; ok {
		u.TotalSales++
		r.users.recomputeDisputeRate(u)
	}
	r.users.mu.Unlock()
	return 1, nil
}

func (r *fakePurchaseRepo) MarkRefunded(ctx context.Context, id uint64, resolution string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.StripeTransferID != nil {
		return 0, nil
	}
	if p.EscrowStatus != model.EscrowStatusHolding && p.EscrowStatus != model.EscrowStatusDisputed {
		return 0, nil
	}
	p.EscrowStatus = model.EscrowStatusRefunded
	p.PaymentStatus = model.PaymentStatusRefunded
	p.Resolution = resolution
	at := now
	p.ResolvedAt = &at
	return 1, nil
}

func (r *fakePurchaseRepo) SumPaidByBuyerSince(ctx context.Context, buyerUID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.purchases {
		if p.BuyerUID != nil && *p.BuyerUID == buyerUID &&
			p.PaymentStatus == model.PaymentStatusCompleted && !p.CreatedAt.Before(since) {
			total += p.AmountPaidCents
		}
	}
	return total, nil
}

func (r *fakePurchaseRepo) SumPaidByGuestSince(ctx context.Context, email string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.purchases {
		if p.GuestEmail != nil && *p.GuestEmail == email &&
			p.PaymentStatus == model.PaymentStatusCompleted && !p.CreatedAt.Before(since) {
			total += p.AmountPaidCents
		}
	}
	return total, nil
}

func (r *fakePurchaseRepo) DeleteStalePending(ctx context.Context, before time.Time) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint64
	for id, p := range r.purchases {
		if p.PaymentStatus == model.PaymentStatusPending && p.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(r.purchases, id)
	}
	return ids, nil
}

func (r *fakePurchaseRepo) SetDB(db *gorm.DB) {}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[uint64]*model.Listing
	nextID   uint64
}

func newFakeListingRepo(listings ...*model.Listing) *fakeListingRepo {
	r := &fakeListingRepo{listings: make(map[uint64]*model.Listing)}
	for _, l := range listings {
		r.nextID++
		if l.ID == 0 {
			l.ID = r.nextID
		}
		r.listings[l.ID] = l
	}
	return r
}

func (r *fakeListingRepo) Create(ctx context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	r.listings[l.ID] = l
	return nil
}

func (r *fakeListingRepo) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeListingRepo) ListActive(ctx context.Context, limit int) ([]model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Listing
	for _, l := range r.listings {
		if l.Status == model.ListingStatusActive {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) ListBySeller(ctx context.Context, sellerUID string) ([]model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Listing
	for _, l := range r.listings {
		if l.SellerUID == sellerUID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) CountActiveBySeller(ctx context.Context, sellerUID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cnt int64
	for _, l := range r.listings {
		if l.SellerUID == sellerUID && l.Status == model.ListingStatusActive {
			cnt++
		}
	}
	return cnt, nil
}

func (r *fakeListingRepo) UpdateStatus(ctx context.Context, id uint64, sellerUID string, status model.ListingStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.SellerUID != sellerUID {
		return 0, nil
	}
	l.Status = status
	return 1, nil
}

func (r *fakeListingRepo) SetDB(db *gorm.DB) {}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []model.Notification
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userUID string) error { return nil }

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, userUID string) (int64, error) {
	return 0, nil
}

func (r *fakeNotificationRepo) SetDB(db *gorm.DB) {}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // recipient addresses
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

// fakeGateway honors the idempotency contract: the same key always yields the
// same transfer id, and each key is charged at most once.
type fakeGateway struct {
	mu        sync.Mutex
	byKey     map[string]string
	calls     int
	transfers int // distinct keys that moved money
	err       error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{byKey: make(map[string]string)}
}

func (g *fakeGateway) Transfer(ctx context.Context, idempotencyKey string, amountCents int64, payeeAccountID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if id, ok := g.byKey[idempotencyKey]; ok {
		return id, nil
	}
	g.transfers++
	id := fmt.Sprintf("tr_%d", g.transfers)
	g.byKey[idempotencyKey] = id
	return id, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
