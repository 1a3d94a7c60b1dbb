// Package notify records workflow notifications and optionally fans them
// out to live subscribers.
package notify

import (
	"context"

	"taskflow/internal/domain/models"

	log "github.com/sirupsen/logrus"
)

type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
}

// Publisher pushes a stored notification to whoever listens for the
// recipient. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

type Service struct {
	store     Store
	publisher Publisher
}

// NewService builds the notification service. publisher may be nil.
func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// Emit stores n and publishes it. Failures are logged and swallowed: the
// workflow step that produced the notification has already happened.
func (s *Service) Emit(ctx context.Context, n models.Notification) {
	if n.RecipientID == "" {
		return
	}
	entry := log.WithFields(log.Fields{"recipient_id": n.RecipientID, "type": n.Type})

	if err := s.store.CreateNotification(ctx, &n); err != nil {
		entry.WithError(err).Warn("failed to store notification")
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, &n); err != nil {
		entry.WithError(err).Warn("failed to publish notification")
	}
}

func (s *Service) List(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, recipientID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.store.MarkNotificationRead(ctx, id, recipientID)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, recipientID)
}
