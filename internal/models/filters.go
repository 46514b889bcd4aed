package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bounds is a lat/lng rectangle. Edges are normalized so Min <= Max.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// NewBounds builds a Bounds from viewport edges given in any order.
func NewBounds(north, south, east, west float64) (Bounds, error) {
	for _, v := range []float64{north, south, east, west} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Bounds{}, errors.New("viewport edges must be finite numbers")
		}
	}
	b := Bounds{
		MinLat: math.Min(north, south),
		MaxLat: math.Max(north, south),
		MinLng: math.Min(east, west),
		MaxLng: math.Max(east, west),
	}
	if !ValidCoordinates(b.MinLat, b.MinLng) || !ValidCoordinates(b.MaxLat, b.MaxLng) {
		return Bounds{}, fmt.Errorf("viewport out of range: lat [%v, %v], lng [%v, %v]", b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	}
	return b, nil
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// TimeWindow restricts discovery to games starting in a time range.
type TimeWindow string

const (
	WindowAny     TimeWindow = ""
	WindowTwoHour TimeWindow = "2h"
	WindowToday   TimeWindow = "today"
	WindowWeekend TimeWindow = "weekend"
)

// ParseTimeWindow validates a time window query value.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch w := TimeWindow(s); w {
	case WindowAny, WindowTwoHour, WindowToday, WindowWeekend:
		return w, nil
	}
	return WindowAny, fmt.Errorf("unknown time window %q", s)
}

// Range returns the inclusive start-time range for the window relative to
// now. ok is false for WindowAny. Day boundaries are UTC.
func (w TimeWindow) Range(now time.Time) (from, to time.Time, ok bool) {
	now = now.UTC()
	switch w {
	case WindowTwoHour:
		return now, now.Add(2 * time.Hour), true
	case WindowToday:
		return now, endOfDay(now), true
	case WindowWeekend:
		days := 6 - int(now.Weekday())
		if now.Weekday() == time.Sunday {
			days = 6
		}
		sat := time.Date(now.Year(), now.Month(), now.Day()+days, 0, 0, 0, 0, time.UTC)
		return sat, endOfDay(sat.AddDate(0, 0, 1)), true
	}
	return time.Time{}, time.Time{}, false
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// ListFilter narrows discovery queries.
type ListFilter struct {
	Sport            Sport
	Window           TimeWindow
	NeedsPlayersOnly bool
}

// Validate checks enum fields.
func (f ListFilter) Validate() error {
	if f.Sport != "" && !f.Sport.Valid() {
		return fmt.Errorf("unknown sport %q", f.Sport)
	}
	if _, err := ParseTimeWindow(string(f.Window)); err != nil {
		return err
	}
	return nil
}

// MyGamesFilter narrows the personal game list.
type MyGamesFilter struct {
	// Role is "all", "hosting" or "participant".
	Role  string
	Sport Sport
	// Date is "upcoming", "past", "today", "week" or "all".
	Date string
}

// Validate checks enum fields and fills defaults.
func (f *MyGamesFilter) Validate() error {
	switch f.Role {
	case "":
		f.Role = "all"
	case "all", "hosting", "participant":
	default:
		return fmt.Errorf("unknown role %q", f.Role)
	}
	switch f.Date {
	case "":
		f.Date = "upcoming"
	case "upcoming", "past", "today", "week", "all":
	default:
		return fmt.Errorf("unknown date filter %q", f.Date)
	}
	if f.Sport != "" && !f.Sport.Valid() {
		return fmt.Errorf("unknown sport %q", f.Sport)
	}
	return nil
}

// MatchesDate applies the Date filter to a start time. Day boundaries are UTC.
func (f MyGamesFilter) MatchesDate(start, now time.Time) bool {
	now = now.UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch f.Date {
	case "upcoming":
		return !start.Before(now)
	case "past":
		return start.Before(now)
	case "today":
		return !start.Before(todayStart) && start.Before(todayStart.AddDate(0, 0, 1))
	case "week":
		return !start.Before(todayStart) && start.Before(todayStart.AddDate(0, 0, 7))
	}
	return true
}
