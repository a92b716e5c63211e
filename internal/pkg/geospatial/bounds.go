package geospatial

import (
	"math"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lng, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / 111320.0
	lngDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return domain.Bounds{
		MinLat: lat - latDelta,
		MinLng: lng - lngDelta,
		MaxLat: lat + latDelta,
		MaxLng: lng + lngDelta,
	}
}

// RingBounds returns the bounding box of every point in the ring.
func RingBounds(r domain.SearchRing) domain.Bounds {
	if len(r.Points) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{
		MinLat: r.Points[0].Lat, MaxLat: r.Points[0].Lat,
		MinLng: r.Points[0].Lng, MaxLng: r.Points[0].Lng,
	}
	for _, p := range r.Points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

// BoundsRing returns the closed rectangle ring (clockwise from the south-west
// corner) covering b.
func BoundsRing(b domain.Bounds) domain.SearchRing {
	sw := domain.LatLng{Lat: b.MinLat, Lng: b.MinLng}
	return domain.SearchRing{Points: []domain.LatLng{
		sw,
		{Lat: b.MaxLat, Lng: b.MinLng},
		{Lat: b.MaxLat, Lng: b.MaxLng},
		{Lat: b.MinLat, Lng: b.MaxLng},
		sw,
	}}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
