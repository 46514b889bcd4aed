package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// InboxLimit caps the number of notifications returned per listing.
const InboxLimit = 50

// NotificationRepository persists in-app notifications
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores n and fills its ID and CreatedAt
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	id, err := r.db.ExecReturningID(ctx,
		"INSERT INTO notifications (user_id, type, data, created_at) VALUES (?, ?, ?, ?)",
		n.UserID, n.Type, string(data), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return nil
}

// ListForUser returns the newest notifications for a user
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, type, data, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT %d
	`, InboxLimit)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var data string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification %d: %w", n.ID, err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// Dismiss deletes one notification owned by userID. Unknown IDs are ignored.
func (r *NotificationRepository) Dismiss(ctx context.Context, id int64, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}
	return nil
}

// DismissAll deletes every notification for userID
func (r *NotificationRepository) DismissAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to dismiss notifications: %w", err)
	}
	return nil
}
