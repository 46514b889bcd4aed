package repository

import (
	"context"
	"fmt"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// FriendRepository reads the friend graph from friend_requests
type FriendRepository struct {
	db *database.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *database.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// IsAcceptedFriend reports whether an ACCEPTED request exists between a and b
// in either direction.
func (r *FriendRepository) IsAcceptedFriend(ctx context.Context, a, b string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM friend_requests
		WHERE status = ?
			AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, models.FriendAccepted, a, b, b, a).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

// SaveRequest creates or updates the request from one user to another
func (r *FriendRepository) SaveRequest(ctx context.Context, fromID, toID string, status models.FriendRequestStatus) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE friend_requests SET status = ? WHERE from_user_id = ? AND to_user_id = ?",
			status, fromID, toID,
		)
		if err != nil {
			return fmt.Errorf("failed to update friend request: %w", err)
		}
		if ok, err := affected(result); err != nil || ok {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO friend_requests (from_user_id, to_user_id, status) VALUES (?, ?, ?)",
			fromID, toID, status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert friend request: %w", err)
		}
		return nil
	})
}
