// Package geom provides the polygon containment predicate used to enforce
// parent/child boundary nesting in the map hierarchy.
package geom

import "errors"

// MinRingVertices is the minimum number of distinct vertices a closed ring must have.
const MinRingVertices = 3

// ErrDegenerateRing is returned when a ring has fewer than MinRingVertices distinct vertices.
var ErrDegenerateRing = errors.New("ring must have at least 3 distinct vertices")

// Point is a geographic coordinate in WGS84. Stored order on the wire is [lat, lng].
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring is an ordered sequence of vertices forming a closed polygon ring.
// The first vertex implicitly closes to the last; it is not duplicated.
type Ring []Point

// Validate checks that the ring has at least MinRingVertices distinct vertices.
func (r Ring) Validate() error {
	distinct := make(map[Point]struct{}, len(r))
	for _, p := range r {
		distinct[p] = struct{}{}
	}
	if len(distinct) < MinRingVertices {
		return ErrDegenerateRing
	}
	return nil
}

// BBox is an axis-aligned bounding box in lat/lng space.
type BBox struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
}

// BoundingBox computes the axis-aligned bounding box of the ring.
// Returns a zero box for an empty ring.
func (r Ring) BoundingBox() BBox {
	if len(r) == 0 {
		return BBox{}
	}
	b := BBox{
		MinLat: r[0].Lat, MaxLat: r[0].Lat,
		MinLng: r[0].Lng, MaxLng: r[0].Lng,
	}
	for _, p := range r[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lng < b.MinLng {
			b.MinLng = p.Lng
		}
		if p.Lng > b.MaxLng {
			b.MaxLng = p.Lng
		}
	}
	return b
}

// Contains reports whether the point is inside the box (inclusive).
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
