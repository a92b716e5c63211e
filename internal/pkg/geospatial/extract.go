package geospatial

import (
	"fmt"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// ToSearchOrder swaps a storage-order pair into search order.
func ToSearchOrder(p domain.LngLat) domain.LatLng {
	return domain.LatLng{Lat: p[1], Lng: p[0]}
}

// ToStorageOrder swaps a search-order pair back into storage order.
func ToStorageOrder(p domain.LatLng) domain.LngLat {
	return domain.LngLat{p.Lng, p.Lat}
}

// LargestRing returns the index of the ring with the most points, or -1 when
// rings is empty. Ties keep the first ring.
//
// This stands in for "main landmass": a MultiPolygon made of several disjoint
// parts (an archipelago, an exclave) loses coverage of every part but one.
func LargestRing(rings [][]domain.LngLat) int {
	best := -1
	for i, r := range rings {
		if best == -1 || len(r) > len(rings[best]) {
			best = i
		}
	}
	return best
}

// ExtractRing turns a polygon geometry into a closed SearchRing.
//
// Polygon uses the outer ring. MultiPolygon uses the ring with the most points.
// Fails with domain.NoRingAvailable when fewer than 3 distinct points remain.
func ExtractRing(g domain.LocationGeometry) (domain.SearchRing, error) {
	var src []domain.LngLat
	switch g.Kind {
	case domain.GeometryPolygon:
		if len(g.Rings) > 0 {
			src = g.Rings[0]
		}
	case domain.GeometryMultiPolygon:
		if i := LargestRing(g.Rings); i >= 0 {
			src = g.Rings[i]
		}
	default:
		return domain.SearchRing{}, fmt.Errorf("%w: %s geometry has no ring", domain.NoRingAvailable, g.Kind)
	}

	points := make([]domain.LatLng, 0, len(src)+1)
	for _, p := range src {
		points = append(points, ToSearchOrder(p))
	}
	ring := CloseRing(domain.SearchRing{Points: points})

	if n := ring.DistinctPoints(); n < 3 {
		return domain.SearchRing{}, fmt.Errorf("%w: ring has %d distinct points", domain.NoRingAvailable, n)
	}
	return ring, nil
}

// CloseRing appends a copy of the first point when the ring is open.
func CloseRing(r domain.SearchRing) domain.SearchRing {
	if len(r.Points) == 0 || r.Closed() {
		return r
	}
	pts := make([]domain.LatLng, len(r.Points), len(r.Points)+1)
	copy(pts, r.Points)
	return domain.SearchRing{Points: append(pts, pts[0])}
}

// ExtractPointRadius returns the stored center and radius of a point geometry,
// substituting defaultRadiusMeters for a missing or non-positive radius.
func ExtractPointRadius(g domain.LocationGeometry, defaultRadiusMeters float64) (domain.LatLng, float64, error) {
	if g.Kind != domain.GeometryPoint || g.Center == nil {
		return domain.LatLng{}, 0, fmt.Errorf("%w: %s geometry has no center", domain.ErrGeometryParse, g.Kind)
	}
	radius := g.RadiusMeters
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	return *g.Center, radius, nil
}
