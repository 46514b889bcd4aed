// Package cluster groups nearby games into map render units.
//
// The default greedy mode is order dependent: a seed claims every unclaimed
// point within the radius of itself, so a point near a claimed member but
// outside the seed's radius starts its own unit. ModeConnected merges
// transitively instead.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
	EarthRadiusMeters = 6_371_000.0

	// DefaultRadiusMeters is the merge distance for map markers.
	DefaultRadiusMeters = 100.0
)

// Mode selects the clustering strategy.
type Mode string

const (
	ModeGreedy    Mode = "greedy"
	ModeConnected Mode = "connected"
)

// ParseMode validates a mode name. Empty selects ModeGreedy.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeGreedy:
		return ModeGreedy, nil
	case ModeConnected:
		return ModeConnected, nil
	}
	return "", fmt.Errorf("unknown cluster mode %q", s)
}

// Options configures Cluster. The zero value is greedy with a 100 m radius.
type Options struct {
	Mode         Mode
	RadiusMeters float64
}

func (o Options) radius() float64 {
	if o.RadiusMeters > 0 {
		return o.RadiusMeters
	}
	return DefaultRadiusMeters
}

// Point is one game position.
type Point struct {
	ID        string
	Lat       float64
	Lng       float64
	StartTime time.Time
}

// Unit is either a lone point or a cluster of two or more points. For a
// cluster, Lat/Lng is the arithmetic mean of member positions and Points is
// sorted by StartTime ascending.
type Unit struct {
	Lat    float64
	Lng    float64
	Points []Point
}

// IsCluster reports whether the unit groups more than one point.
func (u Unit) IsCluster() bool {
	return len(u.Points) > 1
}

// DistanceMeters returns the great-circle distance between two coordinates
// using the haversine formula.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Cluster groups points into render units. Every input point appears in
// exactly one unit. Units are emitted in order of their first input point.
func Cluster(points []Point, opts Options) []Unit {
	if len(points) == 0 {
		return []Unit{}
	}
	if opts.Mode == ModeConnected {
		return connected(points, opts.radius())
	}
	return greedy(points, opts.radius())
}

func greedy(points []Point, radius float64) []Unit {
	units := make([]Unit, 0, len(points))
	claimed := make([]bool, len(points))

	for i, seed := range points {
		if claimed[i] {
			continue
		}

		var members []Point
		for j, p := range points {
			if claimed[j] {
				continue
			}
			if DistanceMeters(seed.Lat, seed.Lng, p.Lat, p.Lng) <= radius {
				claimed[j] = true
				members = append(members, p)
			}
		}

		units = append(units, newUnit(members))
	}

	return units
}

func connected(points []Point, radius float64) []Unit {
	uf := newUnionFind(len(points))
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if DistanceMeters(points[i].Lat, points[i].Lng, points[j].Lat, points[j].Lng) <= radius {
				uf.union(i, j)
			}
		}
	}

	order := make([]int, 0, len(points))
	groups := make(map[int][]Point)
	for i, p := range points {
		root := uf.find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], p)
	}

	units := make([]Unit, 0, len(order))
	for _, root := range order {
		units = append(units, newUnit(groups[root]))
	}
	return units
}

func newUnit(members []Point) Unit {
	if len(members) == 1 {
		return Unit{Lat: members[0].Lat, Lng: members[0].Lng, Points: members}
	}

	var sumLat, sumLng float64
	for _, p := range members {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].StartTime.Before(members[j].StartTime)
	})

	n := float64(len(members))
	return Unit{Lat: sumLat / n, Lng: sumLng / n, Points: members}
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}
