package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"pickupmap/internal/models"
)

// Notifier accepts notification events. Delivery failures never undo the
// mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// NotificationStore persists inbox entries.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	Dismiss(ctx context.Context, id int64, userID string) error
	DismissAll(ctx context.Context, userID string) error
}

// InboxNotifier writes notifications to the in-app inbox.
type InboxNotifier struct {
	store NotificationStore
}

func NewInboxNotifier(store NotificationStore) *InboxNotifier {
	return &InboxNotifier{store: store}
}

func (n *InboxNotifier) Notify(ctx context.Context, note models.Notification) error {
	return n.store.Create(ctx, &note)
}

// FanoutNotifier delivers each event to every child notifier concurrently.
type FanoutNotifier struct {
	notifiers []Notifier
}

func NewFanoutNotifier(notifiers ...Notifier) *FanoutNotifier {
	return &FanoutNotifier{notifiers: notifiers}
}

// Notify waits for every child and returns the first error.
func (f *FanoutNotifier) Notify(ctx context.Context, n models.Notification) error {
	var g errgroup.Group
	for _, child := range f.notifiers {
		child := child
		g.Go(func() error {
			return child.Notify(ctx, n)
		})
	}
	return g.Wait()
}

// NotificationService serves a user's inbox.
type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the newest inbox entries for userID
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	notes, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notes, nil
}

// Dismiss marks one notification as read by removing it from the inbox.
// Unknown ids and notifications owned by someone else are ignored.
func (s *NotificationService) Dismiss(ctx context.Context, userID string, id int64) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.store.Dismiss(ctx, id, userID); err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}
	return nil
}

// DismissAll clears the inbox for userID
func (s *NotificationService) DismissAll(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.store.DismissAll(ctx, userID); err != nil {
		return fmt.Errorf("failed to dismiss notifications: %w", err)
	}
	return nil
}

// deliver sends n and logs failures without returning them.
func deliver(ctx context.Context, notifier Notifier, logger *slog.Logger, n models.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Warn("notification delivery failed",
			"type", n.Type, "user_id", n.UserID, "error", err)
	}
}
