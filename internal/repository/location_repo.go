package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// LocationRepository stores geocoded places
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create inserts a location with a generated ID
func (r *LocationRepository) Create(ctx context.Context, label string, lat, lng float64) (*models.Location, error) {
	loc := &models.Location{
		ID:        uuid.NewString(),
		Label:     label,
		Lat:       lat,
		Lng:       lng,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO locations (id, label, lat, lng, created_at) VALUES (?, ?, ?, ?, ?)",
		loc.ID, loc.Label, loc.Lat, loc.Lng, loc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return loc, nil
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	loc := &models.Location{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, label, lat, lng, created_at FROM locations WHERE id = ?", id,
	).Scan(&loc.ID, &loc.Label, &loc.Lat, &loc.Lng, &loc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	loc.CreatedAt = loc.CreatedAt.UTC()
	return loc, nil
}

// Exists reports whether a location with id is stored
func (r *LocationRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM locations WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check location: %w", err)
	}
	return count > 0, nil
}
