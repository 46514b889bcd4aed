package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// UserRepository handles the local mirror of externally managed profiles
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert stores the latest name and email for a user. Blank fields do not
// overwrite stored values.
func (r *UserRepository) Upsert(ctx context.Context, id, name, email string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var storedName, storedEmail string
		err := tx.QueryRowContext(ctx,
			"SELECT name, email FROM users WHERE id = ?"+tx.GetDialect().LockClause(), id,
		).Scan(&storedName, &storedEmail)

		if errors.Is(err, sql.ErrNoRows) {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)",
				id, name, email, time.Now().UTC(),
			)
			if err != nil && !tx.GetDialect().IsUniqueViolation(err) {
				return fmt.Errorf("failed to insert user: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read user: %w", err)
		}

		if name == "" {
			name = storedName
		}
		if email == "" {
			email = storedEmail
		}
		if name == storedName && email == storedEmail {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET name = ?, email = ? WHERE id = ?", name, email, id); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a user by ID. It returns nil, nil when the user is unknown.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
