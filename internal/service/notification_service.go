package service

import (
	"context"
	"log"

	"github.com/driftlab/market-backend/internal/model"
	"github.com/driftlab/market-backend/internal/repository"
)

// Mailer delivers a single message. Implementations are fire-and-forget from
// the caller's point of view: a failed send is logged, never propagated into a
// financial transaction.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, listingID, purchaseID *uint64)
	Email(ctx context.Context, to, subject, html string)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	mailer Mailer
}

func NewNotificationService(repo repository.NotificationRepository, mailer Mailer) NotificationService {
	return &notificationService{repo: repo, mailer: mailer}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, listingID, purchaseID *uint64) {
	if userUID == "" || typ == "" {
		return
	}
	n := &model.Notification{
		UserUID:    userUID,
		Type:       typ,
		Title:      title,
		Body:       body,
		ListingID:  listingID,
		PurchaseID: purchaseID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("notification create failed for %s: %v", userUID, err)
	}
}

// Email is best-effort in the same way.
func (s *notificationService) Email(ctx context.Context, to, subject, html string) {
	if s.mailer == nil || to == "" {
		return
	}
	if err := s.mailer.Send(ctx, to, subject, html); err != nil {
		log.Printf("email to %s failed: %v", to, err)
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}
