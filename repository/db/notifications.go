package db

import (
	"context"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, recipient_id, sender_id, type, message, link, is_read, is_urgent, created_at`

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	n.ID = newID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.stamp()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.RecipientID, n.SenderID, n.Type, n.Message, n.Link, n.IsRead, n.IsUrgent, n.CreatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errors.ErrUserNotFound
		}
		return queryFailed("create notification", err)
	}
	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	if !validID(recipientID) {
		return []models.Notification{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id`, recipientID, unreadOnly)
	if err != nil {
		return nil, queryFailed("list notifications", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Notification, error) {
		var n models.Notification
		err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Message, &n.Link, &n.IsRead, &n.IsUrgent, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, queryFailed("scan notifications", err)
	}
	return out, nil
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	if !validID(id) || !validID(recipientID) {
		return errors.ErrNotificationNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return queryFailed("mark notification read", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotificationNotFound
	}
	return nil
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	if !validID(recipientID) {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ct, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, queryFailed("mark notifications read", err)
	}
	return ct.RowsAffected(), nil
}
