package models

import "time"

// Location is a geocoded place games are anchored to.
type Location struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidCoordinates reports whether lat/lng are within WGS84 ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
