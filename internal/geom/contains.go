package geom

import "math"

// onSegmentEpsilon bounds the cross-product and range slack when testing
// whether a point sits on a ring edge. Boundary vertices dragged onto a
// parent edge should still count as contained.
const onSegmentEpsilon = 1e-9

// Contains reports whether every vertex of candidate lies inside or on
// boundary. A bounding-box rejection runs first as an optimization; the
// precise even-odd ray-casting test decides membership. The check fails
// closed: the first vertex outside the boundary makes the result false.
//
// A degenerate boundary (fewer than 3 distinct vertices) is an error, not
// a false result, so callers can distinguish bad input from a real miss.
func Contains(candidate, boundary Ring) (bool, error) {
	if err := boundary.Validate(); err != nil {
		return false, err
	}
	bbox := boundary.BoundingBox()
	for _, p := range candidate {
		if !bbox.Contains(p) {
			return false, nil
		}
		if !boundary.ContainsPoint(p) {
			return false, nil
		}
	}
	return true, nil
}

// ContainsPoint reports whether the point is inside or on the ring using
// the even-odd ray-casting rule. Points on an edge or vertex count as inside.
func (r Ring) ContainsPoint(p Point) bool {
	n := len(r)
	if n < MinRingVertices {
		return false
	}
	// Ray casting is unstable exactly on edges, so edge hits are resolved first.
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(p, r[j], r[i]) {
			return true
		}
	}
	inside := false
	x, y := p.Lng, p.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i].Lng, r[i].Lat
		xj, yj := r[j].Lng, r[j].Lat
		intersect := ((yi > y) != (yj > y)) &&
			(x < (xj-xi)*(y-yi)/(yj-yi)+xi)
		if intersect {
			inside = !inside
		}
	}
	return inside
}

// onSegment reports whether p lies on the segment a-b.
func onSegment(p, a, b Point) bool {
	cross := (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
	if math.Abs(cross) > onSegmentEpsilon {
		return false
	}
	return p.Lng >= math.Min(a.Lng, b.Lng)-onSegmentEpsilon &&
		p.Lng <= math.Max(a.Lng, b.Lng)+onSegmentEpsilon &&
		p.Lat >= math.Min(a.Lat, b.Lat)-onSegmentEpsilon &&
		p.Lat <= math.Max(a.Lat, b.Lat)+onSegmentEpsilon
}
