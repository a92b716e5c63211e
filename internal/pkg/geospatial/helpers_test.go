package geospatial_test

import (
	"math"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// circleStorage returns an open ring of n storage-order points around
// (lng, lat) with a wobbly radius so that no three points are collinear.
func circleStorage(lng, lat, radius float64, n int) []domain.LngLat {
	pts := make([]domain.LngLat, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		r := radius * (1 + 0.1*math.Sin(7*a))
		pts[i] = domain.LngLat{round6(lng + r*math.Cos(a)), round6(lat + r*math.Sin(a))}
	}
	return pts
}

// circleRing returns a closed search-order ring.
func circleRing(lat, lng, radius float64, n int) domain.SearchRing {
	src := circleStorage(lng, lat, radius, n)
	pts := make([]domain.LatLng, 0, n+1)
	for _, p := range src {
		pts = append(pts, domain.LatLng{Lat: p[1], Lng: p[0]})
	}
	return domain.SearchRing{Points: append(pts, pts[0])}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
