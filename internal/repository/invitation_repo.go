package repository

import (
	"context"
	"fmt"
	"time"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// InvitationRepository stores the users pre-authorized to join a game
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// insertInvitation is a no-op when the invitation already exists.
func insertInvitation(ctx context.Context, q database.DBTX, gameID, userID string, createdAt time.Time) error {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM game_invitations WHERE game_id = ? AND user_id = ?", gameID, userID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check invitation: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO game_invitations (game_id, user_id, created_at) VALUES (?, ?, ?)",
		gameID, userID, createdAt.UTC(),
	)
	if err != nil && !q.GetDialect().IsUniqueViolation(err) {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// HasInvite reports whether userID holds an invitation for the game
func (r *InvitationRepository) HasInvite(ctx context.Context, gameID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM game_invitations WHERE game_id = ? AND user_id = ?", gameID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check invitation: %w", err)
	}
	return count > 0, nil
}

// Add records invitations for each user. Existing invitations are kept.
func (r *InvitationRepository) Add(ctx context.Context, gameID string, userIDs []string, now time.Time) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, userID := range userIDs {
			if err := insertInvitation(ctx, tx, gameID, userID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListForGame returns the invitations for a game in creation order
func (r *InvitationRepository) ListForGame(ctx context.Context, gameID string) ([]models.Invitation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT game_id, user_id, created_at FROM game_invitations WHERE game_id = ? ORDER BY created_at, user_id", gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.GameID, &inv.UserID, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		inv.CreatedAt = inv.CreatedAt.UTC()
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
